package device

import "strings"

const (
	TypeMobile  = "mobile"
	TypeDesktop = "desktop"
	unknown     = "Unknown"
)

type Info struct {
	DeviceType  string
	DeviceName  string
	OSName      string
	BrowserName string
}

// rule matches when the user agent contains any of anyOf and none of noneOf.
type rule struct {
	anyOf  []string
	noneOf []string
	value  string
}

func (r rule) matches(ua string) bool {
	for _, excluded := range r.noneOf {
		if strings.Contains(ua, excluded) {
			return false
		}
	}
	for _, candidate := range r.anyOf {
		if strings.Contains(ua, candidate) {
			return true
		}
	}
	return false
}

// Rule order matters: iPhone agents also say "Mac OS X" and Android agents
// also say "Linux", Chrome agents also say "Safari" and Edge agents also say
// "Chrome".
var (
	deviceTypeRules = []rule{
		{anyOf: []string{"Mobile", "Android", "iPhone", "iPad"}, value: TypeMobile},
	}

	deviceNameRules = []rule{
		{anyOf: []string{"iPhone"}, value: "iPhone"},
		{anyOf: []string{"iPad"}, value: "iPad"},
		{anyOf: []string{"Android"}, value: "Android Device"},
		{anyOf: []string{"Windows"}, value: "Windows PC"},
		{anyOf: []string{"Macintosh", "Mac OS X"}, value: "Mac"},
		{anyOf: []string{"Linux"}, value: "Linux PC"},
	}

	osRules = []rule{
		{anyOf: []string{"iPhone", "iPad"}, value: "iOS"},
		{anyOf: []string{"Android"}, value: "Android"},
		{anyOf: []string{"Windows"}, value: "Windows"},
		{anyOf: []string{"Macintosh", "Mac OS X"}, value: "macOS"},
		{anyOf: []string{"Linux"}, value: "Linux"},
	}

	browserRules = []rule{
		{anyOf: []string{"Chrome"}, noneOf: []string{"Edg"}, value: "Chrome"},
		{anyOf: []string{"Safari"}, noneOf: []string{"Chrome"}, value: "Safari"},
		{anyOf: []string{"Firefox"}, value: "Firefox"},
		{anyOf: []string{"Edg"}, value: "Edge"},
	}
)

func firstMatch(rules []rule, ua string, fallback string) string {
	for _, r := range rules {
		if r.matches(ua) {
			return r.value
		}
	}
	return fallback
}

// ParseUserAgent classifies a raw user agent. Results are heuristic and only
// used for display.
func ParseUserAgent(ua string) Info {
	if strings.TrimSpace(ua) == "" {
		return Info{DeviceType: TypeDesktop, DeviceName: "Unknown Device", OSName: unknown, BrowserName: unknown}
	}
	return Info{
		DeviceType:  firstMatch(deviceTypeRules, ua, TypeDesktop),
		DeviceName:  firstMatch(deviceNameRules, ua, "Unknown Device"),
		OSName:      firstMatch(osRules, ua, unknown),
		BrowserName: firstMatch(browserRules, ua, unknown),
	}
}
