// Package device derives a coarse device description from a User-Agent
// string. The fingerprint format is stable: it feeds both display strings
// and the same-device comparison used by the multiple-device-login alert.
package device

import "strings"

// Device types.
const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeUnknown = "unknown"
)

// Info is the parsed device description.
type Info struct {
	OS             string
	OSVersion      string
	Browser        string
	BrowserVersion string
	DeviceType     string
}

// Parse extracts OS, browser and device type from a raw User-Agent string.
// Unknown fields are left empty (except DeviceType, which defaults to
// "unknown").
func Parse(userAgent string) Info {
	ua := strings.ToLower(userAgent)
	info := Info{DeviceType: TypeUnknown}
	if userAgent == "" {
		return info
	}

	switch {
	case strings.Contains(ua, "windows nt"):
		info.OS = "Windows"
		info.OSVersion = windowsVersion(ua)
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		info.OS = "iOS"
		info.OSVersion = versionAfter(ua, "os ")
	case strings.Contains(ua, "mac os x"):
		info.OS = "macOS"
		info.OSVersion = versionAfter(ua, "mac os x ")
	case strings.Contains(ua, "android"):
		info.OS = "Android"
		info.OSVersion = versionAfter(ua, "android ")
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(ua, "edg/"):
		info.Browser = "Edge"
		info.BrowserVersion = majorVersion(ua, "edg/")
	case strings.Contains(ua, "opr/"):
		info.Browser = "Opera"
		info.BrowserVersion = majorVersion(ua, "opr/")
	case strings.Contains(ua, "chrome/"):
		info.Browser = "Chrome"
		info.BrowserVersion = majorVersion(ua, "chrome/")
	case strings.Contains(ua, "firefox/"):
		info.Browser = "Firefox"
		info.BrowserVersion = majorVersion(ua, "firefox/")
	case strings.Contains(ua, "safari/") && strings.Contains(ua, "version/"):
		info.Browser = "Safari"
		info.BrowserVersion = majorVersion(ua, "version/")
	}

	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		info.DeviceType = TypeTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		info.DeviceType = TypeMobile
	case info.OS != "":
		info.DeviceType = TypeDesktop
	}
	return info
}

// Fingerprint concatenates "os[ version] - browser[ version] - deviceType".
// Empty OS/browser render as "Unknown" so the string always has three parts.
func (i Info) Fingerprint() string {
	os := i.OS
	if os == "" {
		os = "Unknown"
	} else if i.OSVersion != "" {
		os += " " + i.OSVersion
	}
	browser := i.Browser
	if browser == "" {
		browser = "Unknown"
	} else if i.BrowserVersion != "" {
		browser += " " + i.BrowserVersion
	}
	return os + " - " + browser + " - " + i.DeviceType
}

// Same reports whether two parsed devices are the same device: OS, browser
// and device type all match, with empty fields acting as wildcards.
func Same(a, b Info) bool {
	return wildcardEq(a.OS, b.OS) &&
		wildcardEq(a.Browser, b.Browser) &&
		wildcardEq(typeOrEmpty(a.DeviceType), typeOrEmpty(b.DeviceType))
}

func typeOrEmpty(t string) string {
	if t == TypeUnknown {
		return ""
	}
	return t
}

func wildcardEq(a, b string) bool { return a == "" || b == "" || a == b }

// windowsVersion maps NT kernel versions to marketing names.
func windowsVersion(ua string) string {
	switch {
	case strings.Contains(ua, "windows nt 10.0"):
		return "10"
	case strings.Contains(ua, "windows nt 6.3"):
		return "8.1"
	case strings.Contains(ua, "windows nt 6.2"):
		return "8"
	case strings.Contains(ua, "windows nt 6.1"):
		return "7"
	}
	return ""
}

// versionAfter pulls the version token following marker, normalizing the
// underscore separators Apple uses into dots.
func versionAfter(ua, marker string) string {
	idx := strings.Index(ua, marker)
	if idx < 0 {
		return ""
	}
	rest := ua[idx+len(marker):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return (r < '0' || r > '9') && r != '_' && r != '.'
	})
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.ReplaceAll(rest, "_", ".")
}

// majorVersion returns the major component of the version after marker.
func majorVersion(ua, marker string) string {
	idx := strings.Index(ua, marker)
	if idx < 0 {
		return ""
	}
	rest := ua[idx+len(marker):]
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	if sp := strings.IndexByte(rest, ' '); sp >= 0 {
		rest = rest[:sp]
	}
	return rest
}
