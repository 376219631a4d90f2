package receiving

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a quantity or VND amount into an integer.
//
// Numeric values are returned as-is (floats rounded). Text is reduced to its
// digits, '.' and ',' and then read with '.' as thousands separator and ','
// as decimal separator when both appear. Anything unreadable yields 0.
func ParseAmount(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0
		}
		return int64(v)
	case float32:
		return roundFloat(float64(v))
	case float64:
		return roundFloat(v)
	case string:
		return parseAmountText(v)
	default:
		return parseAmountText(fmt.Sprint(v))
	}
}

func roundFloat(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt64 {
		return 0
	}
	return int64(math.Round(v))
}

func parseAmountText(raw string) int64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}
	// Some exports end amounts with a stray dot ("12.000."); read the
	// integer prefix of what is left.
	if strings.HasSuffix(cleaned, ".") {
		return leadingInt(strings.TrimSuffix(cleaned, "."))
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		// "1.234.567,89": dots group thousands, the comma starts decimals.
		s := strings.ReplaceAll(cleaned, ".", "")
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[:i]
		}
		return leadingInt(s)
	case hasComma:
		return leadingInt(strings.ReplaceAll(cleaned, ",", ""))
	case hasDot:
		return leadingInt(strings.ReplaceAll(cleaned, ".", ""))
	default:
		return leadingInt(cleaned)
	}
}

// leadingInt parses the run of digits at the start of s.
func leadingInt(s string) int64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
