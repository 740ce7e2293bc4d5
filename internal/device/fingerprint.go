// Package device derives coarse client metadata: a low-entropy fingerprint
// used to correlate a pending login with the device that started it, and
// user-agent heuristics for session listings. Neither is a security boundary.
package device

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"
)

const delimiter = "|"

// Attributes are reported by the browser that starts a magic-link login.
type Attributes struct {
	UserAgent           string `json:"user_agent"`
	Language            string `json:"language"`
	ScreenResolution    string `json:"screen_resolution"`
	ColorDepth          int    `json:"color_depth"`
	TimezoneOffset      int    `json:"timezone_offset"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
}

type Generator struct {
	// Salted mixes a fresh random value into every fingerprint, so two calls
	// for the same device never match.
	Salted bool
}

func (g Generator) Generate(attrs Attributes) string {
	parts := []string{
		attrs.UserAgent,
		attrs.Language,
		attrs.ScreenResolution,
		strconv.Itoa(attrs.ColorDepth),
		strconv.Itoa(attrs.TimezoneOffset),
		strconv.Itoa(attrs.HardwareConcurrency),
	}
	if g.Salted {
		parts = append(parts, randomComponent())
	}
	return hash32(strings.Join(parts, delimiter))
}

// hash32 is the classic 31-multiplier string hash over UTF-16 code units,
// wrapped to 32 bits and rendered in base 36.
func hash32(input string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(input)) {
		h = (h << 5) - h + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 36)
}

func randomComponent() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
