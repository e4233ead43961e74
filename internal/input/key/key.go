package key

import (
	"fmt"
	"sort"
	"strings"
)

// ScanPair identifies one physical key: the hardware scan code plus
// the extended flag that distinguishes, for example, left control
// from right control.
type ScanPair struct {
	Code     uint16
	Extended bool
}

// Flip returns the pair with the extended bit inverted. Lookup code
// uses this once as a fallback for extended/non-extended duplicates.
func (p ScanPair) Flip() ScanPair {
	return ScanPair{Code: p.Code, Extended: !p.Extended}
}

// String renders the pair for logs.
func (p ScanPair) String() string {
	if p.Extended {
		return fmt.Sprintf("0x%X_EX", p.Code)
	}
	return fmt.Sprintf("0x%X", p.Code)
}

// MouseScanBase is added to a mouse button index to place mouse
// buttons in the keyboard scan space, so latched combinations can mix
// keyboard keys and mouse buttons.
const MouseScanBase uint16 = 0x1000

// MouseButton returns the synthetic scan pair for a mouse button.
func MouseButton(button int) ScanPair {
	return ScanPair{Code: MouseScanBase + uint16(button)}
}

// Key represents one physical key or mouse button, optionally latched
// with companion keys (typically modifiers) that must be held down
// simultaneously for the key to count as the compound input.
type Key struct {
	// Pair is the canonical scan pair of the primary key.
	Pair ScanPair

	// Virtual is the OS virtual key code, zero when unknown.
	Virtual uint16

	// Name is a display name, informational only.
	Name string

	// Latched lists the companion scan pairs. Order does not matter
	// for identity.
	Latched []ScanPair
}

// IsLatched reports whether the key requires companion keys.
func (k Key) IsLatched() bool {
	return len(k.Latched) > 0
}

// AllPairs returns the primary pair followed by the companions.
func (k Key) AllPairs() []ScanPair {
	pairs := make([]ScanPair, 0, 1+len(k.Latched))
	pairs = append(pairs, k.Pair)
	pairs = append(pairs, k.Latched...)
	return pairs
}

// ID returns a canonical string identity for the key: the primary
// pair plus the sorted companion set. Two keys with equal ID are the
// same compound input regardless of companion registration order.
func (k Key) ID() string {
	if len(k.Latched) == 0 {
		return k.Pair.String()
	}
	companions := make([]string, len(k.Latched))
	for i, p := range k.Latched {
		companions[i] = p.String()
	}
	sort.Strings(companions)
	return k.Pair.String() + "+" + strings.Join(companions, "+")
}

// Equal reports whether two keys denote the same compound input.
func (k Key) Equal(other Key) bool {
	return k.ID() == other.ID()
}

// String renders the key for logs.
func (k Key) String() string {
	if k.Name != "" {
		return k.Name
	}
	return k.ID()
}
