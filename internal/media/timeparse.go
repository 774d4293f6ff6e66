package media

import (
	"math"
	"strconv"
	"strings"
)

// maxSeconds bounds parsed values so absurd input cannot overflow.
const maxSeconds = math.MaxInt32

// ParseTime converts "H:M:S", "M:S" or bare seconds into seconds.
// Malformed or out of range input yields 0.
func ParseTime(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > maxSeconds || total > (maxSeconds-n)/60 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
