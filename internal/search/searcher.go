// Package search enriches recommendations with real program listings
// found on the public web: degree courses on university sites and ITS
// (Istituto Tecnico Superiore) programs.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// universityDomains identifies official Italian university sites.
var universityDomains = []string{
	"unibo.it", "polimi.it", "unipd.it", "uniroma1.it",
	"unimi.it", "unito.it", "unina.it", "unifi.it",
	"units.it", "unige.it", "unipi.it", "unict.it",
}

// itsKeywords mark a result as an ITS program.
var itsKeywords = []string{"its", "istituto tecnico superiore", "tecnico superiore"}

// Course is one ranked program candidate.
type Course struct {
	Name       string `json:"name"`
	University string `json:"university,omitempty"`
	Duration   string `json:"duration,omitempty"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	Type       string `json:"type"`
	Relevance  int    `json:"relevance"`
}

// UniversityGroup holds the university search outcome.
type UniversityGroup struct {
	Query             string   `json:"query"`
	TotalResults      int      `json:"total_results"`
	UniversityResults int      `json:"university_results"`
	Courses           []Course `json:"courses"`
}

// ITSGroup holds the ITS search outcome.
type ITSGroup struct {
	Query        string   `json:"query"`
	TotalResults int      `json:"total_results"`
	ITSResults   int      `json:"its_results"`
	Courses      []Course `json:"courses"`
}

// Results is the full enrichment payload for one profile.
type Results struct {
	UniversityCourses UniversityGroup `json:"university_courses"`
	ITSCourses        ITSGroup        `json:"its_courses"`
	Recommendations   []string        `json:"recommendations"`
}

// Query carries the profile attributes the enricher searches on.
type Query struct {
	FavoriteSubjects      []string
	Location              string
	SchoolType            string
	PrimaryGoal           string
	InstitutionPreference string
}

// Searcher builds ranked program candidates from a search Provider.
type Searcher struct {
	provider Provider
}

// New creates a Searcher over the given provider.
func New(provider Provider) *Searcher {
	return &Searcher{provider: provider}
}

// ForProfile runs the university and ITS searches concurrently and merges
// their outcomes. A failed branch degrades to an empty group; only a
// failure of both is worth an error to the caller.
func (s *Searcher) ForProfile(ctx context.Context, q Query) (*Results, error) {
	res := &Results{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		group, err := s.searchUniversity(gctx, q)
		res.UniversityCourses = group
		if err != nil {
			return fmt.Errorf("university search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		group, err := s.searchITS(gctx, q)
		res.ITSCourses = group
		if err != nil {
			return fmt.Errorf("its search: %w", err)
		}
		return nil
	})
	err := g.Wait()

	res.Recommendations = buildRecommendations(res, q)
	if err != nil && len(res.UniversityCourses.Courses) == 0 && len(res.ITSCourses.Courses) == 0 {
		return res, err
	}
	return res, nil
}

func (s *Searcher) searchUniversity(ctx context.Context, q Query) (UniversityGroup, error) {
	if len(q.FavoriteSubjects) == 0 {
		return UniversityGroup{}, nil
	}

	terms := q.FavoriteSubjects
	if len(terms) > 2 {
		terms = terms[:2]
	}
	query := "corso di laurea " + strings.Join(terms, " ")
	if q.Location != "" {
		query += " " + q.Location
	}
	query += " università sito ufficiale"

	results, err := s.provider.Search(ctx, query, 10)
	if err != nil {
		return UniversityGroup{Query: query}, err
	}

	var filtered []Result
	for _, r := range results {
		lowered := strings.ToLower(r.URL)
		for _, domain := range universityDomains {
			if strings.Contains(lowered, domain) {
				filtered = append(filtered, r)
				break
			}
		}
	}

	courses := make([]Course, 0, len(filtered))
	for i, r := range filtered {
		if i >= 5 {
			break
		}
		name := extractCourseName(r.Title)
		if name == "" {
			continue
		}
		courses = append(courses, Course{
			Name:       name,
			University: extractUniversityName(r.Title, r.URL),
			URL:        r.URL,
			Snippet:    clip(r.Snippet, 150),
			Type:       "università",
			Relevance:  relevance(name+" "+r.Snippet, q.FavoriteSubjects, q.Location),
		})
	}
	sortByRelevance(courses)
	if len(courses) > 3 {
		courses = courses[:3]
	}

	return UniversityGroup{
		Query:             query,
		TotalResults:      len(results),
		UniversityResults: len(filtered),
		Courses:           courses,
	}, nil
}

func (s *Searcher) searchITS(ctx context.Context, q Query) (ITSGroup, error) {
	query := "ITS corso"
	if len(q.FavoriteSubjects) > 0 {
		terms := q.FavoriteSubjects
		if len(terms) > 2 {
			terms = terms[:2]
		}
		query += " " + strings.Join(terms, " ")
	}
	if q.Location != "" {
		query += " " + q.Location
	}
	query += " istituto tecnico superiore"

	results, err := s.provider.Search(ctx, query, 8)
	if err != nil {
		return ITSGroup{Query: query}, err
	}

	var filtered []Result
	for _, r := range results {
		haystack := strings.ToLower(r.Title + " " + r.Snippet)
		for _, kw := range itsKeywords {
			if strings.Contains(haystack, kw) {
				filtered = append(filtered, r)
				break
			}
		}
	}

	courses := make([]Course, 0, len(filtered))
	for i, r := range filtered {
		if i >= 5 {
			break
		}
		courses = append(courses, Course{
			Name:      r.Title,
			Duration:  extractDuration(r.Snippet),
			URL:       r.URL,
			Snippet:   clip(r.Snippet, 150),
			Type:      "ITS",
			Relevance: relevance(r.Title+" "+r.Snippet, q.FavoriteSubjects, q.Location),
		})
	}
	sortByRelevance(courses)
	if len(courses) > 3 {
		courses = courses[:3]
	}

	return ITSGroup{
		Query:        query,
		TotalResults: len(results),
		ITSResults:   len(filtered),
		Courses:      courses,
	}, nil
}

var courseNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Corso di (.+?) -`),
	regexp.MustCompile(`Laurea in (.+?) -`),
	regexp.MustCompile(`(.+?) - Corso di laurea`),
	regexp.MustCompile(`(.+?) - Università`),
}

// extractCourseName pulls a course name out of a result title.
func extractCourseName(title string) string {
	for _, re := range courseNamePatterns {
		if m := re.FindStringSubmatch(title); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if idx := strings.Index(title, " - "); idx > 0 {
		return title[:idx]
	}
	return clip(title, 50)
}

// universityNames maps known domains to display names.
var universityNames = map[string]string{
	"unibo":    "Alma Mater Bologna",
	"polimi":   "Politecnico di Milano",
	"unipd":    "Università di Padova",
	"uniroma1": "Sapienza Roma",
}

func extractUniversityName(title, rawURL string) string {
	for _, domain := range universityDomains {
		if strings.Contains(rawURL, domain) {
			short := strings.SplitN(domain, ".", 2)[0]
			if name, ok := universityNames[short]; ok {
				return name
			}
			return fmt.Sprintf("Università (%s)", short)
		}
	}
	if strings.Contains(title, "Politecnico") {
		return "Politecnico"
	}
	if m := regexp.MustCompile(`Universit[àa]\s+(.+)`).FindStringSubmatch(title); m != nil {
		return "Università " + strings.SplitN(m[1], " - ", 2)[0]
	}
	return "Università"
}

var durationRe = regexp.MustCompile(`(\d+)\s*(anni|ore|mesi)`)

func extractDuration(snippet string) string {
	return durationRe.FindString(strings.ToLower(snippet))
}

// buildRecommendations produces up to 3 short recommendation strings,
// falling back to generic guidance when no course survived filtering.
func buildRecommendations(res *Results, q Query) []string {
	var recs []string

	if len(res.UniversityCourses.Courses) > 0 {
		best := res.UniversityCourses.Courses[0]
		recs = append(recs, fmt.Sprintf("🎓 **%s** presso %s", best.Name, best.University))
	}
	if len(res.ITSCourses.Courses) > 0 {
		best := res.ITSCourses.Courses[0]
		rec := fmt.Sprintf("🔧 **ITS**: %s", clip(best.Name, 60))
		if best.Duration != "" {
			rec += fmt.Sprintf(" (%s)", best.Duration)
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		interests := q.FavoriteSubjects
		if len(interests) > 2 {
			interests = interests[:2]
		}
		switch {
		case len(interests) > 0 && q.Location != "":
			recs = append(recs, fmt.Sprintf("🔍 Esplora corsi in %s a %s", strings.Join(interests, ", "), q.Location))
		case len(interests) > 0:
			recs = append(recs, fmt.Sprintf("🔍 Considera formazione in %s", strings.Join(interests, ", ")))
		default:
			recs = append(recs, "🔍 Consulta i siti ufficiali delle università per informazioni aggiornate")
		}
	}

	if len(recs) > 3 {
		recs = recs[:3]
	}
	return recs
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
