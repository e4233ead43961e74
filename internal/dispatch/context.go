package dispatch

import "sync"

// RuntimeContext is the single place runtime-wide cursors live: the
// active mode, the callback-processing flag, and the hook persisting
// the last runtime mode. It is created at profile start and torn down
// at profile stop; nothing here survives between runs.
type RuntimeContext struct {
	mu         sync.RWMutex
	mode       string
	processing bool
	persist    func(mode string)
}

// NewRuntimeContext starts in the given mode with callback processing
// enabled.
func NewRuntimeContext(startMode string) *RuntimeContext {
	return &RuntimeContext{
		mode:       startMode,
		processing: true,
	}
}

// OnModePersist installs the hook invoked after every mode change so
// the profile can remember the last runtime mode.
func (c *RuntimeContext) OnModePersist(fn func(mode string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist = fn
}

// Mode returns the active runtime mode.
func (c *RuntimeContext) Mode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// setMode swaps the active mode and fires the persist hook.
func (c *RuntimeContext) setMode(mode string) {
	c.mu.Lock()
	c.mode = mode
	persist := c.persist
	c.mu.Unlock()
	if persist != nil {
		persist(mode)
	}
}

// Processing reports whether non-permanent callbacks fire.
func (c *RuntimeContext) Processing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processing
}

// SetProcessing pauses or resumes non-permanent callback execution.
// The change applies to subsequent events only.
func (c *RuntimeContext) SetProcessing(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = on
}
