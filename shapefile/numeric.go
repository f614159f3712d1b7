package shapefile

import "math"

// scanFloat decodes the fixed-point or exponential text of a numeric DBF
// field. It reads the whole field: leading and trailing spaces are allowed,
// anything else that is not part of the number yields NaN. Either '.' or ','
// separates the fraction.
func scanFloat(b []byte) float64 {
	i := 0
	for i < len(b) && b[i] == ' ' {
		i++
	}
	if i == len(b) {
		return math.NaN()
	}

	sign := 1.0
	switch b[i] {
	case '-':
		sign = -1
		i++
	case '+':
		i++
	}

	var (
		whole, frac float64
		div         = 1.0
		digits      int
	)
	for ; i < len(b) && isDigit(b[i]); i++ {
		whole = whole*10 + float64(b[i]-'0')
		digits++
	}
	if i < len(b) && (b[i] == '.' || b[i] == ',') {
		for i++; i < len(b) && isDigit(b[i]); i++ {
			frac = frac*10 + float64(b[i]-'0')
			div *= 10
			digits++
		}
	}
	if digits == 0 {
		return math.NaN()
	}

	exp := 0
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		expSign := 1
		if i < len(b) && (b[i] == '-' || b[i] == '+') {
			if b[i] == '-' {
				expSign = -1
			}
			i++
		}
		expDigits := 0
		for ; i < len(b) && isDigit(b[i]); i++ {
			exp = exp*10 + int(b[i]-'0')
			expDigits++
		}
		if expDigits == 0 {
			return math.NaN()
		}
		exp *= expSign
	}

	for ; i < len(b); i++ {
		if b[i] != ' ' && b[i] != 0 {
			return math.NaN()
		}
	}

	v := sign * (whole + frac/div)
	if exp != 0 {
		v *= math.Pow10(exp)
	}
	return v
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// clampInt converts v to an int64, saturating at the int64 range. NaN
// converts to zero.
func clampInt(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}
