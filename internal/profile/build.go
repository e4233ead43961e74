package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/gate"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
	"github.com/kvance/remapd/internal/mode"
)

// Deps are the runtime collaborators actions bind to. ChangeMode is
// invoked by mode-switch bindings; it is late-bound because the
// dispatcher does not exist until the tree is installed.
type Deps struct {
	Sink       action.OutputSink
	Scripts    *action.ScriptHost
	ChangeMode func(mode string) error
}

// AxisKey identifies one gated axis.
type AxisKey struct {
	Device input.DeviceID
	Axis   int
}

// Runtime is the materialized profile.
type Runtime struct {
	Tree *mode.Tree

	// Gates holds the configured gate engine per gated axis.
	Gates map[AxisKey]*gate.Data

	// Calibrations indexes axis calibration by device and axis.
	Calibrations map[AxisKey]Calibration
}

// Build materializes the profile into runtime structures. Validation
// is assumed to have passed; structural errors here indicate a bug,
// not bad user input.
func (p *Profile) Build(deps Deps) (*Runtime, error) {
	tree := mode.NewTree()
	if err := addModes(tree, p.Modes); err != nil {
		return nil, err
	}

	for i, b := range p.Bindings {
		if err := p.addBinding(tree, b, deps); err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
	}

	rt := &Runtime{
		Tree:         tree,
		Gates:        make(map[AxisKey]*gate.Data, len(p.GatedAxes)),
		Calibrations: make(map[AxisKey]Calibration, len(p.Calibrations)),
	}
	for i, ga := range p.GatedAxes {
		data, err := buildGatedAxis(ga, deps)
		if err != nil {
			return nil, fmt.Errorf("gated axis %d: %w", i, err)
		}
		rt.Gates[AxisKey{Device: input.DeviceID(ga.Device), Axis: ga.Axis}] = data
	}
	for _, c := range p.Calibrations {
		rt.Calibrations[AxisKey{Device: input.DeviceID(c.Device), Axis: c.Axis}] = c
	}
	return rt, nil
}

// addModes inserts parents before children regardless of file order.
func addModes(tree *mode.Tree, defs []ModeDef) error {
	pending := make([]ModeDef, len(defs))
	copy(pending, defs)
	for len(pending) > 0 {
		progressed := false
		var rest []ModeDef
		for _, m := range pending {
			if m.Parent == "" || tree.Exists(m.Parent) {
				if _, err := tree.Add(m.Name, m.Parent); err != nil {
					return err
				}
				progressed = true
				continue
			}
			rest = append(rest, m)
		}
		if !progressed {
			return fmt.Errorf("%w: unresolvable mode parents", ErrInvalidProfile)
		}
		pending = rest
	}
	return nil
}

func (p *Profile) addBinding(tree *mode.Tree, b Binding, deps Deps) error {
	m, ok := tree.Find(b.Mode)
	if !ok {
		return fmt.Errorf("%w: mode %q", mode.ErrModeNotFound, b.Mode)
	}

	typ, err := parseInputType(b.Type)
	if err != nil {
		return err
	}

	item := &mode.InputItem{
		Device:  input.DeviceID(b.Device),
		Type:    typ,
		Enabled: !b.Disabled,
	}

	switch {
	case isKeyType(b.Type):
		pair, err := parseScanPair(b.Scan)
		if err != nil {
			return err
		}
		canonical, virtual := key.Translate(pair)
		k := key.Key{Pair: canonical, Virtual: virtual}
		for _, l := range b.Latched {
			lp, err := parseScanPair(l)
			if err != nil {
				return err
			}
			lc, _ := key.Translate(lp)
			k.Latched = append(k.Latched, lc)
		}
		item.Key = &k
		item.Ident = canonical
		if b.Device == "" {
			item.Device = input.DeviceKeyboard
		}
	case typ == input.TypeMidi, typ == input.TypeOSC:
		item.Ident = b.Message
		if b.Device == "" {
			if typ == input.TypeMidi {
				item.Device = input.DeviceMidi
			} else {
				item.Device = input.DeviceOSC
			}
		}
	default:
		item.Ident = b.ID
	}

	c, err := buildContainer(b.Description, b.Remaps, b.ScriptRefs, b.ModeSwitch, deps)
	if err != nil {
		return err
	}
	if b.AxisButton != nil {
		c.VirtualButton = action.NewAxisButton(b.AxisButton.Lower, b.AxisButton.Upper)
	}
	if c.HasActions() {
		item.Containers = append(item.Containers, c)
	}
	m.SetItem(item)
	return nil
}

// buildContainer assembles one container from declarative action
// lists.
func buildContainer(desc string, remaps []RemapDef, scripts []ScriptRef, modeSwitch string, deps Deps) (*action.Container, error) {
	c := action.NewContainer(desc)
	var set action.ActionSet

	for _, r := range remaps {
		typ, err := parseInputType(r.Type)
		if err != nil {
			return nil, err
		}
		if deps.Sink == nil {
			return nil, action.ErrNilSink
		}
		set = append(set, action.NewRemapAction(deps.Sink, r.Device, typ, r.Target))
	}

	for _, s := range scripts {
		if deps.Scripts == nil {
			return nil, fmt.Errorf("script binding %q without a script host", s.Handler)
		}
		set = append(set, action.NewScriptAction(deps.Scripts, s.Handler))
	}

	if modeSwitch != "" {
		target := modeSwitch
		change := deps.ChangeMode
		set = append(set, action.PressAction(
			fmt.Sprintf("switch to mode %s", target),
			action.FuncFunctor(func(input.Event, *action.Value) (bool, error) {
				if change == nil {
					return false, fmt.Errorf("mode switch to %q: no mode changer bound", target)
				}
				return true, change(target)
			})))
	}

	if len(set) > 0 {
		c.AddSet(set)
	}
	return c, nil
}

func buildGatedAxis(ga GatedAxis, deps Deps) (*gate.Data, error) {
	data := gate.NewData()

	for _, gd := range ga.Gates {
		g, err := data.RegisterGate(gd.Value)
		if err != nil {
			return nil, err
		}
		if gd.DelayMS > 0 {
			g.Delay = time.Duration(gd.DelayMS) * time.Millisecond
		}
		cond, err := parseGateCondition(gd.Condition)
		if err != nil {
			return nil, err
		}
		item, err := gateItem(ga, gd.Remaps, gd.ScriptRefs, deps)
		if err != nil {
			return nil, err
		}
		if item != nil {
			g.SetItem(cond, item)
		}
	}

	for _, rd := range ga.Ranges {
		r := findRange(data, rd.Low, rd.High)
		if r == nil {
			return nil, fmt.Errorf("%w: no range [%v, %v]", ErrInvalidProfile, rd.Low, rd.High)
		}
		if err := configureRange(r, rd, ga, deps); err != nil {
			return nil, err
		}
	}
	if ga.DefaultRange != nil {
		if err := configureRange(data.DefaultRange(), *ga.DefaultRange, ga, deps); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func configureRange(r *gate.RangeInfo, rd RangeDef, ga GatedAxis, deps Deps) error {
	out, err := parseOutputMode(rd.Output)
	if err != nil {
		return err
	}
	r.Mode = out
	r.FixedValue = rd.Fixed
	r.OutMin, r.OutMax = rd.OutMin, rd.OutMax

	cond, err := parseRangeCondition(rd.Condition)
	if err != nil {
		return err
	}
	item, err := gateItem(ga, rd.Remaps, rd.ScriptRefs, deps)
	if err != nil {
		return err
	}
	if item != nil {
		r.SetItem(cond, item)
	}
	return nil
}

// gateItem builds the input item a trigger binding drives. Bindings
// with no actions return nil so unbound conditions stay silent.
func gateItem(ga GatedAxis, remaps []RemapDef, scripts []ScriptRef, deps Deps) (*mode.InputItem, error) {
	c, err := buildContainer("gated axis binding", remaps, scripts, "", deps)
	if err != nil {
		return nil, err
	}
	if !c.HasActions() {
		return nil, nil
	}
	return &mode.InputItem{
		Device:     input.DeviceID(ga.Device),
		Type:       input.TypeJoystickAxis,
		Ident:      ga.Axis,
		Mode:       ga.Mode,
		Enabled:    true,
		Containers: []*action.Container{c},
	}, nil
}

func findRange(data *gate.Data, low, high float64) *gate.RangeInfo {
	for _, r := range data.UsedRanges() {
		lo, hi := r.Bounds()
		if math.Abs(lo-low) < 1e-6 && math.Abs(hi-high) < 1e-6 {
			return r
		}
	}
	return nil
}

func parseInputType(s string) (input.Type, error) {
	switch s {
	case "axis":
		return input.TypeJoystickAxis, nil
	case "button":
		return input.TypeJoystickButton, nil
	case "hat":
		return input.TypeJoystickHat, nil
	case "keyboard":
		return input.TypeKeyboard, nil
	case "mouse":
		return input.TypeMouse, nil
	case "midi":
		return input.TypeMidi, nil
	case "osc":
		return input.TypeOSC, nil
	default:
		return input.TypeNone, fmt.Errorf("unknown input type %q", s)
	}
}

// Normalize applies a calibration to a raw driver value.
func (c Calibration) Normalize(raw float64) float64 {
	center := float64(c.Center)
	var v float64
	if raw >= center {
		span := float64(c.Max) - center
		if span == 0 {
			return 0
		}
		v = (raw - center) / span
	} else {
		span := center - float64(c.Min)
		if span == 0 {
			return 0
		}
		v = (raw - center) / span
	}
	return math.Max(-1, math.Min(1, v))
}
