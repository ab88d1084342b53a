package zipcode

import (
	"math"
	"strconv"
	"strings"
)

// parseWholeNumber parses "1234", "1234.0" or "1.234E3" as an integer value.
func parseWholeNumber(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
