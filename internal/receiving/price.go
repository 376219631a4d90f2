package receiving

// PricesMatch reports whether two unit prices agree once the common VND
// scale differences (x10, x100, x1000) and one-unit rounding drift are
// allowed for. It is deliberately permissive and will not catch small real
// discrepancies.
func PricesMatch(a, b int64) bool {
	switch {
	case a == b:
		return true
	case a*1000 == b, a == b*1000:
		return true
	case a*100 == b, a == b*100:
		return true
	case a*10 == b, a == b/10:
		return true
	}
	return abs64(a*10-b) <= 1 || abs64(a-b/10) <= 1
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
