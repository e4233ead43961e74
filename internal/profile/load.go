package profile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/kvance/remapd/internal/gate"
	"github.com/kvance/remapd/internal/input/key"
)

var (
	// ErrInvalidProfile wraps every validation failure.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Load reads and validates a profile. A missing file is not an
// error: it returns nil so the caller can start with an empty
// profile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate rejects malformed configuration before anything reaches
// the runtime. Gate counts below the minimum or beyond the pool are
// configuration errors, never coerced.
func (p *Profile) Validate() error {
	if len(p.Modes) == 0 {
		return fmt.Errorf("%w: no modes defined", ErrInvalidProfile)
	}

	names := make(map[string]bool, len(p.Modes))
	for _, m := range p.Modes {
		if m.Name == "" {
			return fmt.Errorf("%w: mode with empty name", ErrInvalidProfile)
		}
		if names[m.Name] {
			return fmt.Errorf("%w: duplicate mode %q", ErrInvalidProfile, m.Name)
		}
		names[m.Name] = true
	}
	for _, m := range p.Modes {
		if m.Parent != "" && !names[m.Parent] {
			return fmt.Errorf("%w: mode %q references unknown parent %q", ErrInvalidProfile, m.Name, m.Parent)
		}
	}

	if p.StartMode != "" && !names[p.StartMode] {
		return fmt.Errorf("%w: start mode %q not defined", ErrInvalidProfile, p.StartMode)
	}

	for i, b := range p.Bindings {
		if !names[b.Mode] {
			return fmt.Errorf("%w: binding %d references unknown mode %q", ErrInvalidProfile, i, b.Mode)
		}
		if _, err := parseInputType(b.Type); err != nil {
			return fmt.Errorf("%w: binding %d: %v", ErrInvalidProfile, i, err)
		}
		if b.ModeSwitch != "" && !names[b.ModeSwitch] {
			return fmt.Errorf("%w: binding %d switches to unknown mode %q", ErrInvalidProfile, i, b.ModeSwitch)
		}
		if isKeyType(b.Type) {
			if _, err := parseScanPair(b.Scan); err != nil {
				return fmt.Errorf("%w: binding %d: %v", ErrInvalidProfile, i, err)
			}
			for _, l := range b.Latched {
				if _, err := parseScanPair(l); err != nil {
					return fmt.Errorf("%w: binding %d: %v", ErrInvalidProfile, i, err)
				}
			}
		}
		if b.AxisButton != nil && b.AxisButton.Lower == b.AxisButton.Upper {
			return fmt.Errorf("%w: binding %d: axis button region is empty", ErrInvalidProfile, i)
		}
	}

	for i, ga := range p.GatedAxes {
		if !names[ga.Mode] {
			return fmt.Errorf("%w: gated axis %d references unknown mode %q", ErrInvalidProfile, i, ga.Mode)
		}
		// The engine always carries the two boundary gates.
		count := len(ga.Gates) + 2
		for _, g := range ga.Gates {
			if g.Value <= -1 || g.Value >= 1 {
				count--
			}
			if _, err := parseGateCondition(g.Condition); err != nil {
				return fmt.Errorf("%w: gated axis %d: %v", ErrInvalidProfile, i, err)
			}
		}
		if count < gate.MinGates {
			return fmt.Errorf("%w: gated axis %d needs at least %d gates", ErrInvalidProfile, i, gate.MinGates)
		}
		if count > gate.PoolSize {
			return fmt.Errorf("%w: gated axis %d exceeds the gate pool (%d)", ErrInvalidProfile, i, gate.PoolSize)
		}
		for _, r := range append(ga.Ranges, derefRange(ga.DefaultRange)...) {
			if _, err := parseRangeCondition(r.Condition); err != nil {
				return fmt.Errorf("%w: gated axis %d: %v", ErrInvalidProfile, i, err)
			}
			if _, err := parseOutputMode(r.Output); err != nil {
				return fmt.Errorf("%w: gated axis %d: %v", ErrInvalidProfile, i, err)
			}
		}
	}

	for i, c := range p.Calibrations {
		if c.Min >= c.Max {
			return fmt.Errorf("%w: calibration %d: min %d not below max %d", ErrInvalidProfile, i, c.Min, c.Max)
		}
	}
	return nil
}

func derefRange(r *RangeDef) []RangeDef {
	if r == nil {
		return nil
	}
	return []RangeDef{*r}
}

func isKeyType(t string) bool {
	return t == "keyboard" || t == "mouse"
}

// parseScanPair reads the "0xNN" / "0xNN_EX" form produced by the key
// package.
func parseScanPair(s string) (key.ScanPair, error) {
	raw := s
	extended := false
	if strings.HasSuffix(raw, "_EX") {
		extended = true
		raw = strings.TrimSuffix(raw, "_EX")
	}
	code, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 16)
	if err != nil {
		return key.ScanPair{}, fmt.Errorf("bad scan pair %q", s)
	}
	return key.ScanPair{Code: uint16(code), Extended: extended}, nil
}

func parseGateCondition(s string) (gate.GateCondition, error) {
	switch s {
	case "", "on-cross":
		return gate.OnCross, nil
	case "on-cross-increase":
		return gate.OnCrossIncrease, nil
	case "on-cross-decrease":
		return gate.OnCrossDecrease, nil
	default:
		return 0, fmt.Errorf("unknown gate condition %q", s)
	}
}

func parseRangeCondition(s string) (gate.RangeCondition, error) {
	switch s {
	case "enter-range":
		return gate.EnterRange, nil
	case "exit-range":
		return gate.ExitRange, nil
	case "", "in-range":
		return gate.InRange, nil
	case "outside-range":
		return gate.OutsideRange, nil
	default:
		return 0, fmt.Errorf("unknown range condition %q", s)
	}
}

func parseOutputMode(s string) (gate.OutputMode, error) {
	switch s {
	case "", "normal":
		return gate.OutputNormal, nil
	case "ranged":
		return gate.OutputRanged, nil
	case "fixed":
		return gate.OutputFixed, nil
	case "filter-out":
		return gate.OutputFilterOut, nil
	case "rebased":
		return gate.OutputRebased, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q", s)
	}
}
