package domain

import (
	"strconv"
	"strings"
)

// validTokens are the textual markers a certifying sensor network emits for a
// reliable hour. Comparison is case-insensitive after trimming.
var validTokens = map[string]struct{}{
	"v":     {},
	"1":     {},
	"true":  {},
	"ok":    {},
	"valid": {},
}

// NormalizeValidity maps a raw validity marker to a boolean. Numeric markers
// count as valid when they truncate to 1, matching the source network's
// float-encoded flags ("1.0"). Every unparseable or absent marker is invalid:
// unknown validity must never be treated as valid.
func NormalizeValidity(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return false
	}
	if _, ok := validTokens[s]; ok {
		return true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return int(v) == 1
}
