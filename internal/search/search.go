// Package search implements the Fuzzy Search Engine (C9): a weighted
// scoring match over a static, in-memory service catalog, grounded on
// original_source/services/fuzzy_search.py's FuzzySearchService. rapidfuzz's
// partial_ratio and token_sort_ratio have no direct Go port in the example
// pack, so they are reimplemented here over agnivade/levenshtein's edit
// distance, documented per-function below; every scoring weight and
// threshold is carried over unchanged.
package search

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/piemonte-health/callbridge/internal/metrics"
)

// DefaultLimit is used when a caller does not specify how many results to
// return.
const DefaultLimit = 5

const (
	minQueryLen      = 2
	scoreThreshold   = 40.0
	exactMatchCap    = 80.0
	partialWeight    = 0.3
	tokenSortWeight  = 0.2
	wordMatchCap     = 30.0
	irrelevantPenalty = 20.0
	exactMedicalBonus = 25.0
	exactPlainBonus   = 15.0
	wordMatchBonus    = 15.0
)

var medicalKeywords = map[string]bool{
	"radiografia": true, "rx": true, "caviglia": true, "cuore": true,
	"sangue": true, "denti": true, "cardiologia": true, "analisi": true,
	"esame": true, "tc": true, "tac": true, "tomografia": true,
}

var irrelevantTerms = []string{"peeling", "gemellare", "fetale", "pediatrica"}

// Service is one entry in the static catalog a query is matched against.
type Service struct {
	UUID     string
	Name     string
	Code     string
	Synonyms []string
}

// Result is the outcome of a search call.
type Result struct {
	Found      bool
	Services   []Service
	SearchTerm string
	Message    string
}

// Engine holds the static service catalog to search over.
type Engine struct {
	services []Service
}

// NewEngine builds a search Engine over a fixed catalog.
func NewEngine(services []Service) *Engine {
	return &Engine{services: services}
}

type scored struct {
	service Service
	score   float64
}

// Search scores every service in the catalog against searchTerm and returns
// the top `limit` above the minimum threshold, highest score first. A limit
// of 0 uses DefaultLimit.
func (e *Engine) Search(searchTerm string, limit int) Result {
	timer := prometheus.NewTimer(metrics.FuzzySearchLatency)
	defer timer.ObserveDuration()

	if limit == 0 {
		limit = DefaultLimit
	}

	trimmed := strings.TrimSpace(searchTerm)
	if len(trimmed) < minQueryLen {
		return Result{
			Found:      false,
			SearchTerm: searchTerm,
			Message:    "Search term too short. Please provide at least 2 characters.",
		}
	}

	if len(e.services) == 0 {
		return Result{Found: false, SearchTerm: searchTerm, Message: "No services available for search."}
	}

	terms := expandSearchTerms(searchTerm)

	var candidates []scored
	for _, svc := range e.services {
		score := scoreService(svc, terms, searchTerm)
		if score >= scoreThreshold {
			candidates = append(candidates, scored{service: svc, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	top := make([]Service, len(candidates))
	for i, c := range candidates {
		top[i] = c.service
	}

	result := Result{Found: len(top) > 0, Services: top, SearchTerm: searchTerm}
	if !result.Found {
		result.Message = noResultsMessage(searchTerm)
	}
	return result
}

// expandSearchTerms builds the Italian-term variation set: the whole query
// lowercased, its individual words, and a dash/underscore-normalized form.
func expandSearchTerms(searchTerm string) map[string]bool {
	terms := map[string]bool{}
	lower := strings.ToLower(strings.TrimSpace(searchTerm))
	if lower != "" {
		terms[lower] = true
	}
	for _, word := range strings.Fields(strings.ToLower(searchTerm)) {
		w := strings.TrimSpace(word)
		if w != "" {
			terms[w] = true
		}
	}
	normalized := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(searchTerm), "-", " "), "_", " ")
	if strings.TrimSpace(normalized) != "" {
		terms[normalized] = true
	}
	return terms
}

func serviceSearchText(svc Service) string {
	parts := make([]string, 0, 2+len(svc.Synonyms))
	if svc.Name != "" {
		parts = append(parts, svc.Name)
	}
	if svc.Code != "" {
		parts = append(parts, svc.Code)
	}
	for _, syn := range svc.Synonyms {
		if syn != "" {
			parts = append(parts, syn)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// scoreService replicates _calculate_service_score's five weighted signals.
func scoreService(svc Service, terms map[string]bool, originalQuery string) float64 {
	serviceText := serviceSearchText(svc)
	serviceName := strings.ToLower(svc.Name)
	queryLower := strings.ToLower(originalQuery)
	queryWords := map[string]bool{}
	for _, w := range strings.Fields(queryLower) {
		queryWords[w] = true
	}

	var total float64

	// 1. Exact keyword matching, capped at 80.
	exactScore := 0.0
	for term := range terms {
		if strings.Contains(serviceText, term) {
			if medicalKeywords[term] {
				exactScore += exactMedicalBonus
			} else {
				exactScore += exactPlainBonus
			}
		}
	}
	total += minFloat(exactScore, exactMatchCap)

	// 2. Fuzzy partial-ratio match against name and full text, 30% weight.
	nameRatio := partialRatio(queryLower, serviceName)
	textRatio := partialRatio(queryLower, serviceText)
	total += maxFloat(nameRatio, textRatio) * partialWeight

	// 3. Token-sort ratio against the name, 20% weight.
	total += tokenSortRatio(queryLower, serviceName) * tokenSortWeight

	// 4. Individual word matching, capped at 30.
	wordScore := 0.0
	for word := range queryWords {
		if strings.Contains(serviceText, word) {
			wordScore += wordMatchBonus
		}
	}
	total += minFloat(wordScore, wordMatchCap)

	// 5. Penalty for names matching known-irrelevant terms.
	for _, irrelevant := range irrelevantTerms {
		if strings.Contains(serviceName, irrelevant) {
			total -= irrelevantPenalty
		}
	}

	return maxFloat(total, 0)
}

func noResultsMessage(searchTerm string) string {
	suggestions := []string{
		"cardiologia (servizi cardiaci)",
		"analisi del sangue (esami del sangue)",
		"radiografia (servizi di imaging)",
		"dentale (servizi dentali)",
		"caviglia (esami della caviglia)",
	}
	return "Nessun servizio trovato per '" + searchTerm + "'. Prova a cercare: " + strings.Join(suggestions, ", ")
}

// ratio is a Levenshtein-distance-based similarity score in [0, 100],
// standing in for rapidfuzz's simple ratio.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return maxFloat(0, (1.0-float64(dist)/float64(maxLen))*100)
}

// partialRatio approximates rapidfuzz's partial_ratio: the best ratio of
// the shorter string against any equal-length window of the longer one.
func partialRatio(a, b string) float64 {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if short == "" {
		return 0
	}
	if len(long) <= len(short) {
		return ratio(short, long)
	}

	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		window := long[i : i+len(short)]
		if r := ratio(short, window); r > best {
			best = r
		}
	}
	return best
}

// tokenSortRatio approximates rapidfuzz's token_sort_ratio: tokenize both
// strings, sort the tokens, rejoin, and compare with the plain ratio.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
