package session

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

var userAgentTemplates = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36 Edg/%[1]d.0.%[2]d.%[3]d",
}

// NewUserAgent returns a browser user agent for a new session. It is
// generated once and stored with the record.
func NewUserAgent() string {
	tmpl := userAgentTemplates[rand.Intn(len(userAgentTemplates))]
	major := 110 + rand.Intn(20)
	build := 5000 + rand.Intn(1500)
	patch := rand.Intn(200)
	return fmt.Sprintf(tmpl, major, build, patch)
}

// DeviceHash is the device identifier sent at registration: every digit of
// the user agent, in order.
func DeviceHash(userAgent string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, userAgent)
}

// DeviceOS names the operating system a user agent claims.
func DeviceOS(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return "Windows"
	case strings.Contains(userAgent, "Android"):
		return "Android"
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		return "iOS"
	case strings.Contains(userAgent, "Mac OS X"):
		return "Mac OS X"
	case strings.Contains(userAgent, "Linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
