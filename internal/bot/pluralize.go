package bot

import "fmt"

// pluralize picks the Russian plural form for count: one (1, 21), few (2-4,
// 22-24) or many (0, 5-20, 25-30).
func pluralize(one, few, many string, count int) string {
	n := count % 100
	if n < 0 {
		n = -n
	}
	var s string
	switch {
	case n%10 == 1 && n != 11:
		s = one
	case n%10 >= 2 && n%10 <= 4 && (n < 12 || n > 14):
		s = few
	default:
		s = many
	}
	return fmt.Sprintf("%d %s", count, s)
}
