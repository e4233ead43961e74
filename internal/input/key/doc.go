// Package key models physical keyboard keys and mouse buttons in
// terms of their hardware scan codes, and resolves multi-key
// "latched" combinations against a snapshot of the keyboard state.
//
// A key is identified by its (scan code, extended flag) pair. The OS
// reports some keys under two different pairs depending on modifier
// and lock state; Translate folds those duplicates onto a canonical
// pair so that registration and lookup always agree.
//
// Mouse buttons share the scan space: they are mapped above
// MouseScanBase so that keyboard/mouse combinations latch uniformly.
package key
