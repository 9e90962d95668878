package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		wantName  string
	}{
		{
			name:      "desktop chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantName:  "Chrome on Windows 10",
		},
		{
			name:      "empty agent",
			userAgent: "",
			wantName:  "Unknown device",
		},
		{
			name:      "garbage agent",
			userAgent: "not-a-real-agent",
			wantName:  "Unknown device",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseDevice(tt.userAgent)
			assert.Equal(t, tt.wantName, info.Name)
			assert.NotEmpty(t, info.Fingerprint)
		})
	}
}

func TestParseDeviceFingerprintIsStable(t *testing.T) {
	const agent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15"

	first := ParseDevice(agent)
	second := ParseDevice(agent)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	other := ParseDevice(agent + " Safari/605.1.15")
	assert.NotEqual(t, first.Fingerprint, other.Fingerprint)
}
