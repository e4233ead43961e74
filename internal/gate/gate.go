// Package gate implements the gated-axis engine: a per-axis state
// machine over a pool of gates (trigger points on the normalized
// [-1,1] range) and ranges (intervals between adjacent gates). Each
// new axis sample is diffed against the previous one and converted
// into discrete triggers for gate crossings, range transitions, and
// in-range values.
package gate

import (
	"fmt"
	"time"

	"github.com/kvance/remapd/internal/mode"
)

// GateCondition selects which crossing direction a gate binding
// responds to.
type GateCondition uint8

const (
	OnCross GateCondition = iota
	OnCrossIncrease
	OnCrossDecrease
)

func (c GateCondition) String() string {
	switch c {
	case OnCross:
		return "on-cross"
	case OnCrossIncrease:
		return "on-cross-increase"
	case OnCrossDecrease:
		return "on-cross-decrease"
	default:
		return "unknown"
	}
}

// RangeCondition selects which range transition a range binding
// responds to.
type RangeCondition uint8

const (
	EnterRange RangeCondition = iota
	ExitRange
	InRange
	OutsideRange
)

func (c RangeCondition) String() string {
	switch c {
	case EnterRange:
		return "enter-range"
	case ExitRange:
		return "exit-range"
	case InRange:
		return "in-range"
	case OutsideRange:
		return "outside-range"
	default:
		return "unknown"
	}
}

// OutputMode transforms a value inside a range before it reaches
// downstream consumers.
type OutputMode uint8

const (
	// OutputNormal passes the value through unchanged.
	OutputNormal OutputMode = iota

	// OutputRanged rescales the value's position within the range
	// onto a configured output interval.
	OutputRanged

	// OutputFixed replaces the value with a configured constant.
	OutputFixed

	// OutputFilterOut suppresses the value entirely.
	OutputFilterOut

	// OutputRebased rescales the value's position within the range
	// onto [-1, 1].
	OutputRebased
)

func (m OutputMode) String() string {
	switch m {
	case OutputNormal:
		return "normal"
	case OutputRanged:
		return "ranged"
	case OutputFixed:
		return "fixed"
	case OutputFilterOut:
		return "filter-out"
	case OutputRebased:
		return "rebased"
	default:
		return "unknown"
	}
}

// GateInfo is one pooled gate slot. Slots are allocated once and
// toggled used/unused, so pointers and IDs stay stable across
// reconfiguration.
type GateInfo struct {
	// ID is the slot's fixed pool index.
	ID    int
	Value float64
	Used  bool

	// Delay is the synthetic press/release pulse width applied when
	// the gate fires.
	Delay time.Duration

	// Items binds action inputs per crossing condition, so one gate
	// can drive different sets for increase and decrease crossings.
	Items map[GateCondition]*mode.InputItem
}

// SetItem binds an input item to a crossing condition.
func (g *GateInfo) SetItem(cond GateCondition, item *mode.InputItem) {
	g.Items[cond] = item
}

// HasBinding reports whether the condition has an item with at least
// one container attached.
func (g *GateInfo) HasBinding(cond GateCondition) bool {
	item, ok := g.Items[cond]
	return ok && item != nil && item.HasContainers()
}

func (g *GateInfo) String() string {
	return fmt.Sprintf("gate %d @ %.4f", g.ID, g.Value)
}

// RangeInfo is one pooled range slot bounded by two gates, kept
// ordered ascending by value.
type RangeInfo struct {
	ID   int
	G1   *GateInfo
	G2   *GateInfo
	Used bool

	Mode OutputMode

	// FixedValue is the output for OutputFixed mode.
	FixedValue float64

	// OutMin and OutMax bound the output interval for OutputRanged.
	OutMin float64
	OutMax float64

	// Items binds action inputs per range condition.
	Items map[RangeCondition]*mode.InputItem
}

// SetItem binds an input item to a range condition.
func (r *RangeInfo) SetItem(cond RangeCondition, item *mode.InputItem) {
	r.Items[cond] = item
}

// HasBinding reports whether the condition has an item with at least
// one container attached.
func (r *RangeInfo) HasBinding(cond RangeCondition) bool {
	item, ok := r.Items[cond]
	return ok && item != nil && item.HasContainers()
}

// HasAnyBinding reports whether any condition carries containers.
func (r *RangeInfo) HasAnyBinding() bool {
	for _, item := range r.Items {
		if item != nil && item.HasContainers() {
			return true
		}
	}
	return false
}

// Bounds returns the range's interval ordered ascending.
func (r *RangeInfo) Bounds() (float64, float64) {
	return r.G1.Value, r.G2.Value
}

func (r *RangeInfo) String() string {
	return fmt.Sprintf("range %d [%.4f, %.4f]", r.ID, r.G1.Value, r.G2.Value)
}

// TriggerKind names the discrete events produced by a sample diff.
type TriggerKind uint8

const (
	// TriggerGateCrossed fires for every crossed gate regardless of
	// direction. Consumers turn it into a momentary pulse of the
	// gate's delay.
	TriggerGateCrossed TriggerKind = iota

	// TriggerCrossIncrease and TriggerCrossDecrease fire alongside
	// TriggerGateCrossed for the matching travel direction.
	TriggerCrossIncrease
	TriggerCrossDecrease

	// TriggerRangeEnter fires once when the current range changes.
	TriggerRangeEnter

	// TriggerRangeExitRelease fires for the departed range through
	// its EnterRange binding, releasing a sticky enter press.
	TriggerRangeExitRelease

	// TriggerRangeExit fires for the departed range through its
	// explicit ExitRange binding.
	TriggerRangeExit

	// TriggerValueInRange carries the transformed value of a sample
	// inside an InRange-bound range.
	TriggerValueInRange

	// TriggerValueOutOfRange carries the previous value when the
	// departed range binds OutsideRange.
	TriggerValueOutOfRange

	// TriggerFixedValue replaces TriggerValueInRange when the range's
	// output mode is OutputFixed.
	TriggerFixedValue
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerGateCrossed:
		return "gate-crossed"
	case TriggerCrossIncrease:
		return "cross-increase"
	case TriggerCrossDecrease:
		return "cross-decrease"
	case TriggerRangeEnter:
		return "range-enter"
	case TriggerRangeExitRelease:
		return "range-exit-release"
	case TriggerRangeExit:
		return "range-exit"
	case TriggerValueInRange:
		return "value-in-range"
	case TriggerValueOutOfRange:
		return "value-out-of-range"
	case TriggerFixedValue:
		return "fixed-value"
	default:
		return "unknown"
	}
}

// Trigger is one discrete event between two consecutive samples.
// Exactly one of Gate and Range is set, matching the kind.
type Trigger struct {
	Kind  TriggerKind
	Gate  *GateInfo
	Range *RangeInfo
	Value float64
}

// Item resolves the input item the trigger should drive, or nil when
// the binding is absent.
func (t Trigger) Item() *mode.InputItem {
	switch t.Kind {
	case TriggerGateCrossed:
		return t.Gate.Items[OnCross]
	case TriggerCrossIncrease:
		return t.Gate.Items[OnCrossIncrease]
	case TriggerCrossDecrease:
		return t.Gate.Items[OnCrossDecrease]
	case TriggerRangeEnter:
		return t.Range.Items[EnterRange]
	case TriggerRangeExitRelease:
		return t.Range.Items[EnterRange]
	case TriggerRangeExit:
		return t.Range.Items[ExitRange]
	case TriggerValueInRange, TriggerFixedValue:
		return t.Range.Items[InRange]
	case TriggerValueOutOfRange:
		return t.Range.Items[OutsideRange]
	default:
		return nil
	}
}
