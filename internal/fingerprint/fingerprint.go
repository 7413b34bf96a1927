// Package fingerprint derives a coarse device fingerprint from a raw
// user-agent string. Parsing is a total function: any input, including the
// empty string, yields a fully populated DeviceInfo.
package fingerprint

import "strings"

const Unknown = "Unknown"

// Device classes.
const (
	ClassDesktop = "Desktop"
	ClassMobile  = "Mobile"
	ClassTablet  = "Tablet"
)

type DeviceInfo struct {
	UserAgent   string `json:"user_agent"`
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	DeviceClass string `json:"device_class"`
	IsMobile    bool   `json:"is_mobile"`
}

// Parse matches known browser and OS tokens against the user agent, first
// match wins. Edge-branded strings are excluded from the Chrome check and
// Chrome-branded strings from the Safari check, since each embeds the
// other's token.
func Parse(userAgent string) DeviceInfo {
	info := DeviceInfo{
		UserAgent:   userAgent,
		Browser:     Unknown,
		OS:          Unknown,
		DeviceClass: Unknown,
	}
	if userAgent == "" {
		return info
	}

	switch {
	case strings.Contains(userAgent, "Chrome") && !strings.Contains(userAgent, "Edg"):
		info.Browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		info.Browser = "Firefox"
	case strings.Contains(userAgent, "Safari") && !strings.Contains(userAgent, "Chrome"):
		info.Browser = "Safari"
	case strings.Contains(userAgent, "Edg"):
		info.Browser = "Edge"
	case strings.Contains(userAgent, "OPR") || strings.Contains(userAgent, "Opera"):
		info.Browser = "Opera"
	}

	switch {
	case strings.Contains(userAgent, "Windows"):
		info.OS = "Windows"
		info.DeviceClass = ClassDesktop
	case strings.Contains(userAgent, "Mac OS X") || strings.Contains(userAgent, "Macintosh"):
		info.OS = "macOS"
		info.DeviceClass = ClassDesktop
	case strings.Contains(userAgent, "Linux") && !strings.Contains(userAgent, "Android"):
		info.OS = "Linux"
		info.DeviceClass = ClassDesktop
	case strings.Contains(userAgent, "Android"):
		info.OS = "Android"
		info.DeviceClass = ClassMobile
		info.IsMobile = true
	case strings.Contains(userAgent, "iPad"):
		info.OS = "iOS"
		info.DeviceClass = ClassTablet
		info.IsMobile = true
	case strings.Contains(userAgent, "iPhone"):
		info.OS = "iOS"
		info.DeviceClass = ClassMobile
		info.IsMobile = true
	}

	// Fallback for agents that flag form factor without a recognized mobile OS.
	if !info.IsMobile {
		if strings.Contains(userAgent, "Tablet") {
			info.DeviceClass = ClassTablet
			info.IsMobile = true
		} else if strings.Contains(userAgent, "Mobile") {
			info.DeviceClass = ClassMobile
			info.IsMobile = true
		}
	}

	return info
}
