// Package device turns raw User-Agent strings into a short human-readable
// device label for the audit trail ("Chrome on Mac OS X", "Safari on iPhone").
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// UnknownDevice is the label used when the User-Agent is absent or unparsable.
const UnknownDevice = "Unknown Device"

// ParseUserAgent derives a display name from a User-Agent header value.
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownDevice
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()

	// Mobile platforms are more recognizable than their OS names
	// ("iPhone" beats "CPU iPhone OS 17_0").
	platform := ua.Platform()
	osName := ua.OSInfo().Name
	if platform == "iPhone" || platform == "iPad" {
		osName = platform
	}

	switch {
	case browser == "" && osName == "":
		return UnknownDevice
	case browser == "":
		return osName
	case osName == "":
		return browser
	default:
		return fmt.Sprintf("%s on %s", browser, osName)
	}
}
