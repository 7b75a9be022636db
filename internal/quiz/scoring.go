package quiz

import (
	"math"
	"slices"
	"strings"

	"flashquiz-backend/internal/models"
)

// percent is round(100*n/d), 0 for an empty denominator.
func percent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(d)))
}

// scoreResults scores over every item; unanswered items count as wrong.
func scoreResults(results []*bool) int {
	correct := 0
	for _, r := range results {
		if r != nil && *r {
			correct++
		}
	}
	return percent(correct, len(results))
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(arr []int) map[int]struct{} {
	m := make(map[int]struct{}, len(arr))
	for _, v := range arr {
		m[v] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func correctChoices(choices []models.Choice) map[int]struct{} {
	m := make(map[int]struct{})
	for i, c := range choices {
		if c.IsCorrect {
			m[i] = struct{}{}
		}
	}
	return m
}

func uniqueSorted(arr []int) []int {
	out := slices.Clone(arr)
	slices.Sort(out)
	return slices.Compact(out)
}
