// Package console provides an interactive terminal source for testing
// profiles without real device hardware. Keystrokes captured from the
// terminal are translated to scan pairs and fed through the keyboard
// source as synthetic press/release pairs.
package console

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kvance/remapd/internal/input/key"
	"github.com/kvance/remapd/internal/source"
)

// releaseDelay is how long a synthetic key stays pressed. Terminals
// only report key presses, so the matching release is synthesized.
const releaseDelay = 30 * time.Millisecond

// Console captures terminal keystrokes and injects them into the
// keyboard source.
type Console struct {
	screen tcell.Screen
	kbd    *source.Keyboard
	log    *slog.Logger
}

// New creates a console source feeding the given keyboard source.
func New(kbd *source.Keyboard, log *slog.Logger) (*Console, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Console{screen: screen, kbd: kbd, log: log}, nil
}

// Run initializes the terminal and polls events until the context is
// cancelled or Ctrl-C is pressed.
func (c *Console) Run(ctx context.Context) error {
	if err := c.screen.Init(); err != nil {
		return err
	}
	defer c.screen.Fini()

	c.screen.Clear()
	c.drawBanner()
	c.screen.Show()

	go func() {
		<-ctx.Done()
		c.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	for {
		ev := c.screen.PollEvent()
		switch e := ev.(type) {
		case *tcell.EventInterrupt:
			return nil
		case *tcell.EventResize:
			c.screen.Sync()
		case *tcell.EventKey:
			if e.Key() == tcell.KeyCtrlC {
				return nil
			}
			pair, ok := scanPairFor(e)
			if !ok {
				c.log.Debug("console key has no scan mapping", "key", e.Name())
				continue
			}
			c.inject(pair)
		}
	}
}

// inject pushes a press now and the matching release shortly after.
func (c *Console) inject(pair key.ScanPair) {
	c.kbd.Push(pair, true)
	time.AfterFunc(releaseDelay, func() {
		c.kbd.Push(pair, false)
	})
}

func (c *Console) drawBanner() {
	msg := "remapd console source - keys feed the active profile, Ctrl-C exits"
	style := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for i, r := range msg {
		c.screen.SetContent(i, 0, r, nil, style)
	}
}

// runeScans maps printable characters to PC scan set 1 make codes.
var runeScans = map[rune]uint16{
	'1': 0x02, '2': 0x03, '3': 0x04, '4': 0x05, '5': 0x06,
	'6': 0x07, '7': 0x08, '8': 0x09, '9': 0x0A, '0': 0x0B,
	'-': 0x0C, '=': 0x0D,
	'q': 0x10, 'w': 0x11, 'e': 0x12, 'r': 0x13, 't': 0x14,
	'y': 0x15, 'u': 0x16, 'i': 0x17, 'o': 0x18, 'p': 0x19,
	'[': 0x1A, ']': 0x1B,
	'a': 0x1E, 's': 0x1F, 'd': 0x20, 'f': 0x21, 'g': 0x22,
	'h': 0x23, 'j': 0x24, 'k': 0x25, 'l': 0x26,
	';': 0x27, '\'': 0x28, '`': 0x29, '\\': 0x2B,
	'z': 0x2C, 'x': 0x2D, 'c': 0x2E, 'v': 0x2F, 'b': 0x30,
	'n': 0x31, 'm': 0x32, ',': 0x33, '.': 0x34, '/': 0x35,
	' ': 0x39,
}

// keyScans maps tcell special keys to scan pairs. Navigation keys
// carry the extended flag, matching their hardware encoding.
var keyScans = map[tcell.Key]key.ScanPair{
	tcell.KeyEscape:     {Code: 0x01},
	tcell.KeyEnter:      {Code: 0x1C},
	tcell.KeyTab:        {Code: 0x0F},
	tcell.KeyBackspace:  {Code: 0x0E},
	tcell.KeyBackspace2: {Code: 0x0E},
	tcell.KeyF1:         {Code: 0x3B},
	tcell.KeyF2:         {Code: 0x3C},
	tcell.KeyF3:         {Code: 0x3D},
	tcell.KeyF4:         {Code: 0x3E},
	tcell.KeyF5:         {Code: 0x3F},
	tcell.KeyF6:         {Code: 0x40},
	tcell.KeyF7:         {Code: 0x41},
	tcell.KeyF8:         {Code: 0x42},
	tcell.KeyF9:         {Code: 0x43},
	tcell.KeyF10:        {Code: 0x44},
	tcell.KeyF11:        {Code: 0x57},
	tcell.KeyF12:        {Code: 0x58},
	tcell.KeyUp:         {Code: 0x48, Extended: true},
	tcell.KeyDown:       {Code: 0x50, Extended: true},
	tcell.KeyLeft:       {Code: 0x4B, Extended: true},
	tcell.KeyRight:      {Code: 0x4D, Extended: true},
	tcell.KeyHome:       {Code: 0x47, Extended: true},
	tcell.KeyEnd:        {Code: 0x4F, Extended: true},
	tcell.KeyPgUp:       {Code: 0x49, Extended: true},
	tcell.KeyPgDn:       {Code: 0x51, Extended: true},
	tcell.KeyInsert:     {Code: 0x52, Extended: true},
	tcell.KeyDelete:     {Code: 0x53, Extended: true},
}

func scanPairFor(e *tcell.EventKey) (key.ScanPair, bool) {
	if e.Key() == tcell.KeyRune {
		r := e.Rune()
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		code, ok := runeScans[r]
		return key.ScanPair{Code: code}, ok
	}
	pair, ok := keyScans[e.Key()]
	return pair, ok
}
