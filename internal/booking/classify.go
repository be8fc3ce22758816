// Package booking implements the Booking Orchestrator (C10) and the
// deterministic scenario classifier (C11) that replaces
// llm_interpretation.py's LLM call.
package booking

import "fmt"

// Scenario is the booking shape determined from the sorting API's grouped
// service response.
type Scenario string

const (
	ScenarioBundle   Scenario = "bundle"
	ScenarioCombined Scenario = "combined"
	ScenarioSeparate Scenario = "separate"
)

// ServiceGroup is one group in the sorting API's grouped response: the
// services it bundles and whether the provider marked it as a true group
// booking (is_group) versus a single combined-service substitution.
type ServiceGroup struct {
	Services []Service
	IsGroup  bool
}

// Service is a minimal service reference for classification and summary
// purposes; the full catalog entry lives in internal/search.Service.
type Service struct {
	Name string
	UUID string
}

// Classification is the deterministic replacement for
// interpret_sorting_scenario's LLM-produced result: the same fields, the
// same three analysis rules, no network call.
type Classification struct {
	Scenario       Scenario
	Reasoning      string
	NumAppointments int
	ServiceSummary string
}

// ClassifyScenario applies the three rules from
// SORTING_INTERPRETATION_SYSTEM_PROMPT's ANALYSIS RULES:
//
//   - exactly one group, IsGroup true  -> bundle, one appointment
//   - exactly one group, IsGroup false -> combined, one appointment
//   - two or more groups (regardless of IsGroup) -> separate, one per group
//
// spec.md §4.10 explicitly permits short-circuiting the LLM call as long as
// the classification and an equivalent human-readable reasoning are
// produced; this is a straight port of those three rules.
func ClassifyScenario(groups []ServiceGroup) Classification {
	switch {
	case len(groups) == 1 && groups[0].IsGroup:
		return Classification{
			Scenario:        ScenarioBundle,
			Reasoning:       "Exactly one service group with the group flag set, so every service is booked together in a single appointment.",
			NumAppointments: 1,
			ServiceSummary:  summarizeGroup(groups[0], 1),
		}
	case len(groups) == 1:
		return Classification{
			Scenario:        ScenarioCombined,
			Reasoning:       "Exactly one service group without the group flag, so the services are represented by a single combined service in one appointment.",
			NumAppointments: 1,
			ServiceSummary:  summarizeGroup(groups[0], 1),
		}
	default:
		summaries := make([]string, 0, len(groups))
		for i, g := range groups {
			summaries = append(summaries, summarizeGroup(g, i+1))
		}
		return Classification{
			Scenario:        ScenarioSeparate,
			Reasoning:       fmt.Sprintf("%d service groups were returned, so each group needs its own appointment.", len(groups)),
			NumAppointments: len(groups),
			ServiceSummary:  joinSummaries(summaries),
		}
	}
}

func summarizeGroup(g ServiceGroup, position int) string {
	if len(g.Services) == 0 {
		return fmt.Sprintf("Group %d: no services", position)
	}
	names := make([]string, len(g.Services))
	for i, s := range g.Services {
		names[i] = s.Name
	}
	return fmt.Sprintf("Group %d: %s", position, joinSummaries(names))
}

func joinSummaries(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
