package key

// Resolve returns the candidate keys whose full latch set - the
// primary key plus every companion - is held down in the snapshot.
// Candidates are checked in order; callers that want first-match-wins
// semantics stop at the first returned key.
//
// Resolve is a pure function over the explicit snapshot. Ownership of
// keyboard state belongs to the caller.
func Resolve(state State, candidates []Key) []Key {
	var matched []Key
	for _, candidate := range candidates {
		if fullyPressed(state, candidate) {
			matched = append(matched, candidate)
		}
	}
	return matched
}

// ResolveFirst returns the first candidate whose latch set is fully
// pressed, or false when none match.
func ResolveFirst(state State, candidates []Key) (Key, bool) {
	for _, candidate := range candidates {
		if fullyPressed(state, candidate) {
			return candidate, true
		}
	}
	return Key{}, false
}

func fullyPressed(state State, k Key) bool {
	for _, pair := range k.AllPairs() {
		if !state.Pressed(pair) {
			return false
		}
	}
	return true
}
