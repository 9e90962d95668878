package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// DeviceInfo is the human-facing description of the client that opened a
// session, derived from the User-Agent header at login.
type DeviceInfo struct {
	Name        string
	Fingerprint string
}

// ParseDevice derives a display name and a stable fingerprint from a raw
// User-Agent string. Unknown or empty agents collapse to "Unknown device"
// with a fingerprint over the raw string, so lookups stay deterministic.
func ParseDevice(rawUserAgent string) DeviceInfo {
	rawUserAgent = strings.TrimSpace(rawUserAgent)
	info := DeviceInfo{
		Name:        "Unknown device",
		Fingerprint: fingerprint(rawUserAgent),
	}
	if rawUserAgent == "" {
		return info
	}

	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()

	var parts []string
	if browser != "" {
		parts = append(parts, browser)
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, "on "+os)
	}
	if ua.Mobile() {
		parts = append(parts, "(mobile)")
	} else if ua.Bot() {
		parts = append(parts, "(bot)")
	}
	if len(parts) > 0 {
		info.Name = strings.Join(parts, " ")
	}
	return info
}

func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}
