// Package device turns a raw client descriptor (User-Agent) into a coarse
// label for display. Labels are advisory and never identify a device.
package device

import (
	"strings"

	"sessionlimit/internal/domain"
	"sessionlimit/internal/netutil"
)

type rule struct {
	any    []string
	except string
	label  string
}

func (r rule) match(ua string) bool {
	if r.except != "" && strings.Contains(ua, r.except) {
		return false
	}
	for _, s := range r.any {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

// Tables are evaluated top to bottom; the first matching rule wins.
var (
	browserRules = []rule{
		{any: []string{"chrome"}, except: "edg", label: "Chrome"},
		{any: []string{"firefox"}, label: "Firefox"},
		{any: []string{"safari"}, except: "chrome", label: "Safari"},
		{any: []string{"edg"}, label: "Edge"},
	}

	// android sits above linux: Android descriptors also carry "Linux".
	osRules = []rule{
		{any: []string{"windows"}, label: "Windows"},
		{any: []string{"mac"}, except: "iphone", label: "macOS"},
		{any: []string{"android"}, label: "Android"},
		{any: []string{"linux"}, label: "Linux"},
		{any: []string{"iphone", "ios"}, label: "iOS"},
	}

	deviceTypeRules = []rule{
		{any: []string{"mobile", "android", "iphone"}, label: domain.DeviceTypeMobile},
		{any: []string{"tablet", "ipad"}, label: domain.DeviceTypeTablet},
	}
)

func firstMatch(rules []rule, ua, fallback string) string {
	for _, r := range rules {
		if r.match(ua) {
			return r.label
		}
	}
	return fallback
}

// Classify never fails: unknown input yields Unknown/Unknown/desktop.
func Classify(raw string) domain.DeviceLabel {
	ua := strings.ToLower(netutil.TruncateDescriptor(raw))
	return domain.DeviceLabel{
		Browser:         firstMatch(browserRules, ua, domain.Unknown),
		OperatingSystem: firstMatch(osRules, ua, domain.Unknown),
		DeviceType:      firstMatch(deviceTypeRules, ua, domain.DeviceTypeDesktop),
	}
}
