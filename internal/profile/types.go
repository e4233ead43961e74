// Package profile loads remapping profiles from TOML, validates them,
// and materializes the runtime structures: the mode tree with its
// input items and the gate configurations for gated axes. The runtime
// core never parses configuration itself.
package profile

// Profile is the on-disk document.
type Profile struct {
	// StartMode is the mode activated when no persisted runtime mode
	// exists.
	StartMode string `toml:"start_mode"`

	Modes        []ModeDef     `toml:"modes"`
	Bindings     []Binding     `toml:"bindings"`
	GatedAxes    []GatedAxis   `toml:"gated_axes"`
	Calibrations []Calibration `toml:"calibration"`
	Scripts      []ScriptFile  `toml:"scripts"`
}

// ModeDef declares one mode. An empty parent makes a root mode.
type ModeDef struct {
	Name   string `toml:"name"`
	Parent string `toml:"parent"`
}

// Binding attaches actions to one input in one mode.
type Binding struct {
	Mode        string `toml:"mode"`
	Device      string `toml:"device"`
	Type        string `toml:"type"` // axis, button, hat, keyboard, mouse, midi, osc
	Description string `toml:"description"`

	// ID selects the axis/button/hat index for joystick inputs.
	ID int `toml:"id"`

	// Scan selects the primary scan pair for keyboard and mouse
	// inputs, e.g. "0x1E" or "0x48_EX". Latched lists companion
	// pairs that must be held simultaneously.
	Scan    string   `toml:"scan"`
	Latched []string `toml:"latched"`

	// Message is the derived message key for MIDI and OSC inputs.
	Message string `toml:"message"`

	// Disabled keeps the binding but drops matching events.
	Disabled bool `toml:"disabled"`

	Remaps     []RemapDef     `toml:"remap"`
	ScriptRefs []ScriptRef    `toml:"script"`
	ModeSwitch string         `toml:"mode_switch"`
	AxisButton *AxisButtonDef `toml:"axis_button"`
}

// RemapDef forwards the input to a virtual output slot.
type RemapDef struct {
	Device int    `toml:"device"`
	Type   string `toml:"type"` // axis, button, hat
	Target int    `toml:"target"`
}

// ScriptRef invokes a Lua handler defined by one of the profile's
// script files.
type ScriptRef struct {
	Handler string `toml:"handler"`
}

// ScriptFile is a Lua source loaded into the script host at run
// start.
type ScriptFile struct {
	Path string `toml:"path"`
}

// AxisButtonDef converts an axis binding into button edges over a
// value region.
type AxisButtonDef struct {
	Lower float64 `toml:"lower"`
	Upper float64 `toml:"upper"`
}

// GatedAxis configures the gate engine for one axis.
type GatedAxis struct {
	Mode   string `toml:"mode"`
	Device string `toml:"device"`
	Axis   int    `toml:"axis"`

	Gates        []GateDef  `toml:"gate"`
	Ranges       []RangeDef `toml:"range"`
	DefaultRange *RangeDef  `toml:"default_range"`
}

// GateDef places one gate and binds actions to its crossings.
type GateDef struct {
	Value float64 `toml:"value"`

	// Condition selects the crossing direction: on-cross,
	// on-cross-increase or on-cross-decrease.
	Condition string `toml:"condition"`

	// DelayMS overrides the synthetic pulse width.
	DelayMS int64 `toml:"delay_ms"`

	Remaps     []RemapDef  `toml:"remap"`
	ScriptRefs []ScriptRef `toml:"script"`
}

// RangeDef configures the range between two gate values and binds
// actions to a range condition.
type RangeDef struct {
	Low  float64 `toml:"low"`
	High float64 `toml:"high"`

	// Condition selects the transition: enter-range, exit-range,
	// in-range or outside-range.
	Condition string `toml:"condition"`

	// Output selects the value transform: normal, ranged, fixed,
	// filter-out or rebased.
	Output string  `toml:"output"`
	Fixed  float64 `toml:"fixed"`
	OutMin float64 `toml:"out_min"`
	OutMax float64 `toml:"out_max"`

	Remaps     []RemapDef  `toml:"remap"`
	ScriptRefs []ScriptRef `toml:"script"`
}

// Calibration maps a driver axis range onto [-1, 1].
type Calibration struct {
	Device string `toml:"device"`
	Axis   int    `toml:"axis"`
	Min    int    `toml:"min"`
	Center int    `toml:"center"`
	Max    int    `toml:"max"`
}
