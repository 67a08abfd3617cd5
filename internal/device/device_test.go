package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaChromeWin = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhone    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
)

func TestParseChromeOnMac(t *testing.T) {
	d := Parse(uaChromeMac)
	assert.Equal(t, "macOS", d.OS)
	assert.Equal(t, "10.15.7", d.OSVersion)
	assert.Equal(t, "Chrome", d.Browser)
	assert.Equal(t, "120", d.BrowserVersion)
	assert.Equal(t, TypeDesktop, d.DeviceType)
}

func TestParseChromeOnWindows(t *testing.T) {
	d := Parse(uaChromeWin)
	assert.Equal(t, "Windows", d.OS)
	assert.Equal(t, "10", d.OSVersion)
	assert.Equal(t, "Chrome", d.Browser)
	assert.Equal(t, TypeDesktop, d.DeviceType)
}

func TestParseIPhone(t *testing.T) {
	d := Parse(uaIPhone)
	assert.Equal(t, "iOS", d.OS)
	assert.Equal(t, "Safari", d.Browser)
	assert.Equal(t, TypeMobile, d.DeviceType)
}

func TestParseEmpty(t *testing.T) {
	d := Parse("")
	assert.Equal(t, TypeUnknown, d.DeviceType)
	assert.Empty(t, d.OS)
}

func TestFingerprintFormat(t *testing.T) {
	d := Parse(uaChromeWin)
	assert.Equal(t, "Windows 10 - Chrome 120 - desktop", d.Fingerprint())

	assert.Equal(t, "Unknown - Unknown - unknown", Parse("").Fingerprint())
}

func TestSameDevice(t *testing.T) {
	mac := Parse(uaChromeMac)
	win := Parse(uaChromeWin)

	assert.True(t, Same(mac, mac))
	assert.False(t, Same(mac, win))

	// Undefined fields act as wildcards.
	wildcard := Info{Browser: "Chrome"}
	assert.True(t, Same(mac, wildcard))
	assert.True(t, Same(win, wildcard))
	assert.False(t, Same(Parse(uaIPhone), Info{Browser: "Chrome"}))
}
