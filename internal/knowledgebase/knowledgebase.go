// Package knowledgebase backs the Flow Manager's knowledge_base_new,
// call_graph, get_exam_by_visit, get_exam_by_sport and pricing global
// functions with a static JSON-file lookup, following
// original_source/services/local_data_service.py's JSON-load-once-and-
// cache pattern and its substring-match search style. The original's
// knowledge base, call-graph and pricing data live in separate services
// that were not part of the retrievable source (no FAQ/graph/pricing
// files were kept in original_source/); this package ships the same
// interface contract over an operator-supplied static file instead of
// inventing clinical pricing data.
package knowledgebase

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type faqEntry struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type priceEntry struct {
	Sport  string `json:"sport"`
	Gender string `json:"gender"`
	Region string `json:"region"`
	MinAge int    `json:"min_age"`
	MaxAge int    `json:"max_age"`
	Price  string `json:"price"`
}

type fileFormat struct {
	FAQ               []faqEntry            `json:"faq"`
	Hours             []faqEntry            `json:"hours"`
	ExamsByVisitCode  map[string]string     `json:"exams_by_visit"`
	ExamsBySport      map[string]string     `json:"exams_by_sport"`
	CompetitivePrices []priceEntry          `json:"competitive_pricing"`
	NonAgonisticPrice string                `json:"non_agonistic_price"`
}

// Store answers the static informational global functions. The zero value
// is a valid, empty Store where every lookup reports not-found, so a
// deployment without a knowledge-base file still boots cleanly.
type Store struct {
	faq               []faqEntry
	hours             []faqEntry
	examsByVisit      map[string]string
	examsBySport      map[string]string
	competitivePrices []priceEntry
	nonAgonisticPrice string
}

// Load reads the knowledge-base JSON file at path.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledgebase: read %s: %w", path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("knowledgebase: parse %s: %w", path, err)
	}
	return &Store{
		faq:               f.FAQ,
		hours:             f.Hours,
		examsByVisit:      f.ExamsByVisitCode,
		examsBySport:      f.ExamsBySport,
		competitivePrices: f.CompetitivePrices,
		nonAgonisticPrice: f.NonAgonisticPrice,
	}, nil
}

func searchEntries(entries []faqEntry, query string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return "", false
	}
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Query), needle) || strings.Contains(needle, strings.ToLower(e.Query)) {
			return e.Answer, true
		}
	}
	return "", false
}

// Answer backs knowledge_base_new: FAQs, preparation instructions, document
// requirements and booking-process questions.
func (s *Store) Answer(query string) (string, bool) {
	if s == nil {
		return "", false
	}
	return searchEntries(s.faq, query)
}

// CallGraph backs call_graph: clinic hours, closures, blood-collection
// windows.
func (s *Store) CallGraph(query string) (string, bool) {
	if s == nil {
		return "", false
	}
	return searchEntries(s.hours, query)
}

// ExamByVisit backs get_exam_by_visit: the exams required for a visit-type
// code.
func (s *Store) ExamByVisit(visitCode string) (string, bool) {
	if s == nil || s.examsByVisit == nil {
		return "", false
	}
	v, ok := s.examsByVisit[visitCode]
	return v, ok
}

// ExamBySport backs get_exam_by_sport: the exams required for a sport.
func (s *Store) ExamBySport(sport string) (string, bool) {
	if s == nil || s.examsBySport == nil {
		return "", false
	}
	v, ok := s.examsBySport[strings.ToLower(sport)]
	return v, ok
}

// CompetitivePricing backs get_competitive_pricing: agonistic sports-visit
// pricing, matched by sport/gender/region and an inclusive age range.
func (s *Store) CompetitivePricing(age int, gender, sport, region string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, p := range s.competitivePrices {
		if !strings.EqualFold(p.Sport, sport) || !strings.EqualFold(p.Gender, gender) || !strings.EqualFold(p.Region, region) {
			continue
		}
		if age < p.MinAge || age > p.MaxAge {
			continue
		}
		return p.Price, true
	}
	return "", false
}

// NonAgonisticPricing backs get_price_non_agonistic_visit: the flat
// non-competitive visit price, when configured.
func (s *Store) NonAgonisticPricing() (string, bool) {
	if s == nil || s.nonAgonisticPrice == "" {
		return "", false
	}
	return s.nonAgonisticPrice, true
}
