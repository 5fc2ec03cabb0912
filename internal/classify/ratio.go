package classify

import (
	"math"
	"strings"
)

// Ratio is the normalized indel similarity of a and b on a 0-100 scale:
// 100 * (1 - indelDistance / (len(a)+len(b))). Two empty strings score 0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 || len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 100 * float64(2*lcsLen(ra, rb)) / float64(total)
}

// lcsLen is the longest common subsequence length, two-row dynamic programming
func lcsLen(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the distinct token sets of a and b. Both inputs are
// normalized first. When one set contains the other the score is 100;
// otherwise it is the best Ratio among the shared tokens and each side's
// shared+remaining tokens. The result is rounded to an integer in 0..100.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(Normalize(a)), tokenSet(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		inB[t] = struct{}{}
	}
	inA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		inA[t] = struct{}{}
	}

	var sect, onlyA, onlyB []string
	for _, t := range ta {
		if _, ok := inB[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if _, ok := inA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}

	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	s := strings.Join(sect, " ")
	sa := join(s, strings.Join(onlyA, " "))
	sb := join(s, strings.Join(onlyB, " "))

	best := Ratio(sa, sb)
	if s != "" {
		best = math.Max(best, math.Max(Ratio(s, sa), Ratio(s, sb)))
	}
	return int(math.Round(best))
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
