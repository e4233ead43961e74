package gate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kvance/remapd/internal/mode"
)

const (
	// PoolSize fixes the gate and range arenas. Slots toggle between
	// used and unused; nothing is ever reallocated.
	PoolSize = 20

	// MinGates is the smallest permitted used-gate count.
	MinGates = 2

	// DefaultDelay is the pulse width for gate-crossing bindings that
	// do not configure their own.
	DefaultDelay = 250 * time.Millisecond

	// valueTolerance treats two gate values as equal.
	valueTolerance = 1e-6

	// historySize bounds the diagnostic trigger ring.
	historySize = 64
)

var (
	// ErrPoolExhausted is returned when no free gate slot remains.
	ErrPoolExhausted = errors.New("gate pool exhausted")

	// ErrTooFewGates is returned when a mutation would leave fewer
	// than MinGates used gates.
	ErrTooFewGates = fmt.Errorf("at least %d gates must remain used", MinGates)
)

// Data owns the gate and range pools for one gated axis, plus the
// previous-sample memory the trigger diff depends on. All operations
// serialize on an internal lock; overlapping ProcessTriggers calls
// for the same axis never interleave.
type Data struct {
	mu sync.Mutex

	gates  [PoolSize]*GateInfo
	ranges [PoolSize]*RangeInfo

	// defaultRange always spans the lowest to highest used gate and
	// acts as a catch-all when no specific range has bindings.
	defaultRange *RangeInfo

	lastValue float64
	lastRange *RangeInfo
	hasLast   bool

	// filter switches individual trigger kinds off. Absent kinds are
	// active.
	filter map[TriggerKind]bool

	history []Trigger
	histPos int
}

// NewData allocates the pools and activates the two boundary gates at
// -1 and +1, satisfying the minimum-gate invariant from the start.
func NewData() *Data {
	d := &Data{
		filter:  make(map[TriggerKind]bool),
		history: make([]Trigger, 0, historySize),
	}
	for i := 0; i < PoolSize; i++ {
		d.gates[i] = &GateInfo{
			ID:    i,
			Delay: DefaultDelay,
			Items: make(map[GateCondition]*mode.InputItem),
		}
		d.ranges[i] = &RangeInfo{
			ID:    i,
			Items: make(map[RangeCondition]*mode.InputItem),
		}
	}
	d.defaultRange = &RangeInfo{
		ID:    -1,
		Items: make(map[RangeCondition]*mode.InputItem),
	}

	d.gates[0].Used = true
	d.gates[0].Value = -1
	d.gates[1].Used = true
	d.gates[1].Value = 1
	d.updateRangesLocked()
	return d
}

// DefaultRange exposes the catch-all range for binding configuration.
func (d *Data) DefaultRange() *RangeInfo {
	return d.defaultRange
}

// RegisterGate returns the used gate at the given value, activating
// the lowest-index free slot when none exists. Dependent ranges are
// rebuilt on activation.
func (d *Data) RegisterGate(value float64) (*GateInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registerGateLocked(value)
}

func (d *Data) registerGateLocked(value float64) (*GateInfo, error) {
	if g := d.findGateLocked(value); g != nil {
		return g, nil
	}
	for _, g := range d.gates {
		if g.Used {
			continue
		}
		g.Used = true
		g.Value = value
		d.updateRangesLocked()
		return g, nil
	}
	return nil, ErrPoolExhausted
}

// FindGate returns the used gate at the given value within float
// tolerance.
func (d *Data) FindGate(value float64) (*GateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g := d.findGateLocked(value)
	return g, g != nil
}

func (d *Data) findGateLocked(value float64) *GateInfo {
	for _, g := range d.gates {
		if g.Used && math.Abs(g.Value-value) < valueTolerance {
			return g
		}
	}
	return nil
}

// GateCount reports the number of used gates.
func (d *Data) GateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.usedGatesLocked())
}

// SetGateCount grows or shrinks the used-gate set to exactly n.
// Growth splits the widest range at its midpoint, falling back to
// even spacing over [-1, 1] when no splittable range exists. Shrink
// releases the highest-index used slots. n below MinGates fails with
// ErrTooFewGates; n above the pool size fails with ErrPoolExhausted.
func (d *Data) SetGateCount(n int) error {
	if n < MinGates {
		return ErrTooFewGates
	}
	if n > PoolSize {
		return ErrPoolExhausted
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.usedGatesLocked()) > n {
		highest := -1
		for i, g := range d.gates {
			if g.Used {
				highest = i
			}
		}
		d.gates[highest].Used = false
	}

	for len(d.usedGatesLocked()) < n {
		mid, ok := d.widestMidpointLocked()
		if !ok {
			d.respaceLocked(n)
			break
		}
		if _, err := d.registerGateLocked(mid); err != nil {
			return err
		}
	}

	d.updateRangesLocked()
	return nil
}

// widestMidpointLocked finds the midpoint of the widest interval
// between adjacent used gates, reporting failure when every interval
// has collapsed and a midpoint would collide with an existing gate.
func (d *Data) widestMidpointLocked() (float64, bool) {
	used := d.usedGatesLocked()
	if len(used) < 2 {
		return 0, false
	}
	best, width := 0.0, 0.0
	for i := 0; i+1 < len(used); i++ {
		w := used[i+1].Value - used[i].Value
		if w > width {
			width = w
			best = used[i].Value + w/2
		}
	}
	if width < 2*valueTolerance {
		return 0, false
	}
	return best, true
}

// respaceLocked distributes n gates evenly across [-1, 1], reusing
// the lowest-index slots.
func (d *Data) respaceLocked(n int) {
	for _, g := range d.gates {
		g.Used = false
	}
	step := 2.0 / float64(n-1)
	for i := 0; i < n; i++ {
		d.gates[i].Used = true
		d.gates[i].Value = -1 + step*float64(i)
	}
	d.updateRangesLocked()
}

// usedGatesLocked returns the used gates sorted ascending by value.
func (d *Data) usedGatesLocked() []*GateInfo {
	var used []*GateInfo
	for _, g := range d.gates {
		if g.Used {
			used = append(used, g)
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Value < used[j].Value })
	return used
}

// UpdateRanges recomputes the range for every adjacent pair of used
// gates. A range already bound to the same gate-id pair is reused so
// its conditions, output mode, and action bindings survive gate
// reordering; otherwise a free pooled slot is claimed. Calling this
// twice without a gate mutation in between changes nothing.
func (d *Data) UpdateRanges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateRangesLocked()
}

func (d *Data) updateRangesLocked() {
	used := d.usedGatesLocked()
	if len(used) < 2 {
		for _, r := range d.ranges {
			r.Used = false
		}
		return
	}

	type pairKey struct{ a, b int }
	existing := make(map[pairKey]*RangeInfo)
	for _, r := range d.ranges {
		if r.Used {
			existing[pairKey{r.G1.ID, r.G2.ID}] = r
		}
	}

	keep := make(map[int]bool)
	for i := 0; i+1 < len(used); i++ {
		g1, g2 := used[i], used[i+1]
		if r, ok := existing[pairKey{g1.ID, g2.ID}]; ok {
			r.G1, r.G2 = g1, g2
			keep[r.ID] = true
			continue
		}
		r := d.freeRangeLocked(keep)
		r.Used = true
		r.G1, r.G2 = g1, g2
		r.Mode = OutputNormal
		r.FixedValue = 0
		r.OutMin, r.OutMax = 0, 0
		for cond := range r.Items {
			delete(r.Items, cond)
		}
		keep[r.ID] = true
	}

	for _, r := range d.ranges {
		if r.Used && !keep[r.ID] {
			r.Used = false
		}
	}

	d.defaultRange.Used = true
	d.defaultRange.G1 = used[0]
	d.defaultRange.G2 = used[len(used)-1]
}

// freeRangeLocked returns the lowest-index slot that is neither used
// nor already claimed this rebuild. The pool can never run out: 20
// gates bound at most 19 ranges.
func (d *Data) freeRangeLocked(claimed map[int]bool) *RangeInfo {
	for _, r := range d.ranges {
		if !r.Used && !claimed[r.ID] {
			return r
		}
	}
	for _, r := range d.ranges {
		if !claimed[r.ID] {
			return r
		}
	}
	return nil
}

// UsedRanges returns the specific ranges sorted ascending by their
// lower bound. The default range is not included.
func (d *Data) UsedRanges() []*RangeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usedRangesLocked()
}

func (d *Data) usedRangesLocked() []*RangeInfo {
	var used []*RangeInfo
	for _, r := range d.ranges {
		if r.Used {
			used = append(used, r)
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].G1.Value < used[j].G1.Value })
	return used
}

// SetTriggerFilter switches one trigger kind on or off. All kinds
// start active.
func (d *Data) SetTriggerFilter(kind TriggerKind, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter[kind] = !active
}

// Reset drops the previous-sample memory and the trigger history so a
// fresh run starts clean. Gate and range configuration is untouched.
func (d *Data) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLast = false
	d.lastValue = 0
	d.lastRange = nil
	d.history = d.history[:0]
	d.histPos = 0
}

// History returns a copy of the retained trigger ring, oldest first.
func (d *Data) History() []Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Trigger, 0, len(d.history))
	if len(d.history) == historySize {
		out = append(out, d.history[d.histPos:]...)
		out = append(out, d.history[:d.histPos]...)
	} else {
		out = append(out, d.history...)
	}
	return out
}

// ProcessTriggers diffs a new normalized sample against the previous
// one and returns the discrete triggers the movement produced, in
// emission order: in-range value for the current range, range
// enter/exit transitions, then crossed gates ordered by proximity to
// the previous value. The first sample only establishes the baseline
// and reports at most an in-range value.
func (d *Data) ProcessTriggers(value float64) []Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasLast && value == d.lastValue {
		return nil
	}

	var out []Trigger
	cur := d.rangeForLocked(value)

	if cur != nil && cur.HasBinding(InRange) {
		if v, ok := filterValue(cur, value); ok {
			kind := TriggerValueInRange
			if cur.Mode == OutputFixed {
				kind = TriggerFixedValue
			}
			out = d.emitLocked(out, Trigger{Kind: kind, Range: cur, Value: v})
		}
	}

	if d.hasLast {
		prev := d.lastValue

		if d.lastRange != nil && d.lastRange != cur {
			if cur != nil && cur.HasBinding(EnterRange) {
				out = d.emitLocked(out, Trigger{Kind: TriggerRangeEnter, Range: cur, Value: value})
			}
			if d.lastRange.HasBinding(OutsideRange) {
				// A FilterOut departed range suppresses the trigger
				// along with the value.
				if fv, ok := filterValue(d.lastRange, prev); ok {
					out = d.emitLocked(out, Trigger{Kind: TriggerValueOutOfRange, Range: d.lastRange, Value: fv})
				}
			}
			// The departed range fires twice: once through its enter
			// binding, releasing a sticky press, and once through its
			// explicit exit binding.
			if d.lastRange.HasBinding(EnterRange) {
				out = d.emitLocked(out, Trigger{Kind: TriggerRangeExitRelease, Range: d.lastRange, Value: value})
			}
			if d.lastRange.HasBinding(ExitRange) {
				out = d.emitLocked(out, Trigger{Kind: TriggerRangeExit, Range: d.lastRange, Value: value})
			}
		}

		for _, g := range d.crossedGatesLocked(prev, value) {
			if g.HasBinding(OnCross) {
				out = d.emitLocked(out, Trigger{Kind: TriggerGateCrossed, Gate: g, Value: value})
			}
			if value > prev {
				if g.HasBinding(OnCrossIncrease) {
					out = d.emitLocked(out, Trigger{Kind: TriggerCrossIncrease, Gate: g, Value: value})
				}
			} else if g.HasBinding(OnCrossDecrease) {
				out = d.emitLocked(out, Trigger{Kind: TriggerCrossDecrease, Gate: g, Value: value})
			}
		}
	}

	d.lastValue = value
	d.lastRange = cur
	d.hasLast = true
	return out
}

// emitLocked applies the kind filter and records the trigger in the
// diagnostic ring.
func (d *Data) emitLocked(out []Trigger, t Trigger) []Trigger {
	if d.filter[t.Kind] {
		return out
	}
	if len(d.history) < historySize {
		d.history = append(d.history, t)
	} else {
		d.history[d.histPos] = t
		d.histPos = (d.histPos + 1) % historySize
	}
	return append(out, t)
}

// rangeForLocked returns the bound specific range containing the
// value, falling back to the default range. Ranges are half-open
// [v1, v2); the topmost range includes its upper bound so +1 always
// lands somewhere.
func (d *Data) rangeForLocked(value float64) *RangeInfo {
	used := d.usedRangesLocked()
	for i, r := range used {
		if !r.HasAnyBinding() {
			continue
		}
		lo, hi := r.Bounds()
		top := i == len(used)-1
		if value >= lo && (value < hi || (top && value <= hi)) {
			return r
		}
	}
	return d.defaultRange
}

// crossedGatesLocked returns the used gates strictly past the
// previous value up to and including the current one, ordered by
// proximity to the previous value.
func (d *Data) crossedGatesLocked(prev, cur float64) []*GateInfo {
	var crossed []*GateInfo
	for _, g := range d.usedGatesLocked() {
		if cur > prev && g.Value > prev && g.Value <= cur {
			crossed = append(crossed, g)
		} else if cur < prev && g.Value < prev && g.Value >= cur {
			crossed = append(crossed, g)
		}
	}
	sort.Slice(crossed, func(i, j int) bool {
		return math.Abs(crossed[i].Value-prev) < math.Abs(crossed[j].Value-prev)
	})
	return crossed
}

// filterValue transforms a value through a range's output mode.
// Values outside the range's interval are always suppressed.
func filterValue(r *RangeInfo, value float64) (float64, bool) {
	lo, hi := r.Bounds()
	if value < lo || value > hi {
		return 0, false
	}
	switch r.Mode {
	case OutputFilterOut:
		return 0, false
	case OutputFixed:
		return r.FixedValue, true
	case OutputRanged:
		return rescale(value, lo, hi, r.OutMin, r.OutMax), true
	case OutputRebased:
		return rescale(value, lo, hi, -1, 1), true
	default:
		return value, true
	}
}

func rescale(v, inLo, inHi, outLo, outHi float64) float64 {
	if inHi == inLo {
		return outLo
	}
	return outLo + (v-inLo)/(inHi-inLo)*(outHi-outLo)
}
