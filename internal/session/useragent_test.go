package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserAgent(t *testing.T) {
	ua := NewUserAgent()
	assert.Contains(t, ua, "Mozilla/5.0")
	assert.NotEqual(t, "Unknown", DeviceOS(ua))
	assert.NotEmpty(t, DeviceHash(ua))
}

func TestDeviceHash(t *testing.T) {
	assert.Equal(t, "5010064537361205000", DeviceHash("Mozilla/5.0 (Windows NT 10.0; Win64) AppleWebKit/537.36 Chrome/120.5000"))
	assert.Equal(t, "", DeviceHash("no digits"))
}

func TestDeviceOS(t *testing.T) {
	tests := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)":              "Windows",
		"Mozilla/5.0 (X11; Linux x86_64)":                        "Linux",
		"Mozilla/5.0 (Linux; Android 13)":                        "Android",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)":        "Mac OS X",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)": "iOS",
		"curl/8.0":                                               "Unknown",
	}
	for ua, want := range tests {
		assert.Equal(t, want, DeviceOS(ua), ua)
	}
}
