package search

import (
	"sort"
	"strings"
)

// programKeywords are the generic course terms worth one point each.
var programKeywords = []string{"corso", "laurea", "triennale", "magistrale"}

// relevance scores a result text against the student's interests and
// location: 3 points per matched interest (first 3 interests only),
// 2 for the location, 1 per generic program keyword.
func relevance(text string, interests []string, location string) int {
	score := 0
	lower := strings.ToLower(text)

	n := len(interests)
	if n > 3 {
		n = 3
	}
	for _, interest := range interests[:n] {
		if interest != "" && strings.Contains(lower, strings.ToLower(interest)) {
			score += 3
		}
	}

	if location != "" && strings.Contains(lower, strings.ToLower(location)) {
		score += 2
	}

	for _, kw := range programKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	return score
}

// sortByRelevance orders courses by descending relevance. The sort is
// stable: ties keep discovery order, so identical inputs always produce
// the same ranking.
func sortByRelevance(courses []Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Relevance > courses[j].Relevance
	})
}
