package key

// Windows virtual key codes for the keys the translation layer needs
// to know about.
const (
	vkShift    uint16 = 0x10
	vkControl  uint16 = 0x11
	vkMenu     uint16 = 0x12
	vkPause    uint16 = 0x13
	vkNumlock  uint16 = 0x90
	vkLShift   uint16 = 0xA0
	vkRShift   uint16 = 0xA1
	vkLControl uint16 = 0xA2
	vkRControl uint16 = 0xA3
	vkLMenu    uint16 = 0xA4
	vkRMenu    uint16 = 0xA5
	vkReturn   uint16 = 0x0D
	vkDivide   uint16 = 0x6F
)

// Scan codes referenced by the quirk table.
const (
	ScanShiftLeft    uint16 = 0x2A
	ScanShiftRight   uint16 = 0x36
	ScanControlLeft  uint16 = 0x1D
	ScanControlRight uint16 = 0x1D // extended
	ScanAltLeft      uint16 = 0x38
	ScanAltRight     uint16 = 0x38 // extended
	ScanReturn       uint16 = 0x1C
	ScanNumpadEnter  uint16 = 0x1C // extended
	ScanSlash        uint16 = 0x35
	ScanNumlock      uint16 = 0x45
	ScanPause        uint16 = 0x45 // extended on some keyboards
)

// translation folds a reported scan pair onto its canonical pair and
// virtual code.
type translation struct {
	pair    ScanPair
	virtual uint16
}

// quirkTable lists scan pairs the OS reports inconsistently. Pause
// and NumLock share scan code 0x45 with differing extended bits
// depending on hook context; the numeric keypad digits arrive with
// the extended bit set when NumLock is on, which would make the same
// physical key register as two distinct inputs.
var quirkTable = map[ScanPair]translation{
	// Pause is reported extended by the low level hook but the
	// canonical registration form is non-extended NumLock's pair.
	{Code: ScanPause, Extended: true}: {pair: ScanPair{Code: ScanPause, Extended: true}, virtual: vkPause},

	// Keypad digits and decimal point: fold the NumLock-on extended
	// variant onto the plain pair so bindings hold in either state.
	{Code: 0x47, Extended: true}: {pair: ScanPair{Code: 0x47}, virtual: 0x67}, // KP7
	{Code: 0x48, Extended: true}: {pair: ScanPair{Code: 0x48}, virtual: 0x68}, // KP8
	{Code: 0x49, Extended: true}: {pair: ScanPair{Code: 0x49}, virtual: 0x69}, // KP9
	{Code: 0x4B, Extended: true}: {pair: ScanPair{Code: 0x4B}, virtual: 0x64}, // KP4
	{Code: 0x4C, Extended: true}: {pair: ScanPair{Code: 0x4C}, virtual: 0x65}, // KP5
	{Code: 0x4D, Extended: true}: {pair: ScanPair{Code: 0x4D}, virtual: 0x66}, // KP6
	{Code: 0x4F, Extended: true}: {pair: ScanPair{Code: 0x4F}, virtual: 0x61}, // KP1
	{Code: 0x50, Extended: true}: {pair: ScanPair{Code: 0x50}, virtual: 0x62}, // KP2
	{Code: 0x51, Extended: true}: {pair: ScanPair{Code: 0x51}, virtual: 0x63}, // KP3
	{Code: 0x52, Extended: true}: {pair: ScanPair{Code: 0x52}, virtual: 0x60}, // KP0
	{Code: 0x53, Extended: true}: {pair: ScanPair{Code: 0x53}, virtual: 0x6E}, // KP.
}

// virtualTable maps canonical scan pairs to virtual codes for the
// keys that latch definitions commonly use.
var virtualTable = map[ScanPair]uint16{
	{Code: ScanShiftLeft}:                    vkLShift,
	{Code: ScanShiftRight}:                   vkRShift,
	{Code: ScanControlLeft}:                  vkLControl,
	{Code: ScanControlRight, Extended: true}: vkRControl,
	{Code: ScanAltLeft}:                      vkLMenu,
	{Code: ScanAltRight, Extended: true}:     vkRMenu,
	{Code: ScanReturn}:                       vkReturn,
	{Code: ScanNumpadEnter, Extended: true}:  vkReturn,
	{Code: ScanSlash, Extended: true}:        vkDivide,
	{Code: ScanNumlock}:                      vkNumlock,
}

// Translate normalizes a reported scan pair onto its canonical form
// and returns the matching virtual key code (zero when unknown). All
// registration and lookup paths must pass scan pairs through here so
// duplicates collapse onto a single identity.
func Translate(pair ScanPair) (ScanPair, uint16) {
	if t, ok := quirkTable[pair]; ok {
		return t.pair, t.virtual
	}
	if vk, ok := virtualTable[pair]; ok {
		return pair, vk
	}
	return pair, 0
}
