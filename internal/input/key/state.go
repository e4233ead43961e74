package key

// State is a snapshot of which scan pairs are held down. Sources
// build a State per delivered event; the resolver only ever reads it,
// so a State handed to an event must not be mutated afterwards.
type State map[ScanPair]bool

// NewState returns an empty snapshot.
func NewState() State {
	return make(State)
}

// Set records the pressed state of a pair.
func (s State) Set(pair ScanPair, pressed bool) {
	s[pair] = pressed
}

// Clone returns an independent copy of the snapshot.
func (s State) Clone() State {
	out := make(State, len(s))
	for pair, pressed := range s {
		out[pair] = pressed
	}
	return out
}

// Pressed reports whether the pair is held, falling back to the
// flipped extended bit once. The fallback covers keys whose extended
// flag differs between the registration source and the hook.
func (s State) Pressed(pair ScanPair) bool {
	if pressed, ok := s[pair]; ok {
		return pressed
	}
	return s[pair.Flip()]
}

// Held implements the snapshot interface consumed by the dispatcher.
func (s State) Held(code uint16, extended bool) bool {
	return s.Pressed(ScanPair{Code: code, Extended: extended})
}
