package templates

import (
	"html/template"
	"math"
	"strconv"
	"strings"
)

var funcMap = template.FuncMap{
	"price":  FormatPrice,
	"plural": Plural,
}

// FormatPrice renders a price rounded to whole units with space-separated
// digit groups, e.g. 30000000 -> "30 000 000".
func FormatPrice(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// Plural picks the Russian noun form for n: one (1, 21), few (2-4, 22-24)
// or many (0, 5-20, 25).
func Plural(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch mod100 := n % 100; {
	case mod100 >= 11 && mod100 <= 14:
		return many
	case n%10 == 1:
		return one
	case n%10 >= 2 && n%10 <= 4:
		return few
	default:
		return many
	}
}
