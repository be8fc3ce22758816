package handlers

import (
	"strings"

	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
)

// InfoLookup answers an info-tool question (knowledge base, call graph,
// exam lookups) given a query string; the Manager wires a concrete
// implementation (e.g. a static FAQ table or an upstream lookup) in at
// startup. Pricing has its own signature since it takes four structured
// arguments rather than one free-text query.
type InfoLookup func(query string) (answer string, found bool)

// PricingLookup answers get_competitive_pricing's four-parameter query.
type PricingLookup func(age int, gender, sport, region string) (price string, found bool)

// KnowledgeBase answers general FAQ-style questions and stays on the
// current node either way — info tools never transition.
func KnowledgeBase(lookup InfoLookup) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		query := strings.TrimSpace(argString(args, "query"))
		answer, found := lookup(query)
		if !found {
			return state.Result{Success: false, Message: "I don't have that information."}
		}
		return state.Result{Success: true, Message: answer}
	}
}

// CallGraph answers clinic-hours/closures questions the same way
// KnowledgeBase does, over a distinct lookup table.
func CallGraph(lookup InfoLookup) Handler {
	return KnowledgeBase(lookup)
}

// ExamByVisit and ExamBySport both resolve a required-exam list; wired
// to distinct lookup tables by the Manager.
func ExamByVisit(lookup InfoLookup) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		code := strings.TrimSpace(argString(args, "visit_code"))
		answer, found := lookup(code)
		if !found {
			return state.Result{Success: false, Message: "I don't recognize that visit code."}
		}
		return state.Result{Success: true, Message: answer}
	}
}

func ExamBySport(lookup InfoLookup) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		sport := strings.TrimSpace(argString(args, "sport"))
		answer, found := lookup(sport)
		if !found {
			return state.Result{Success: false, Message: "I don't have exam requirements for that sport."}
		}
		return state.Result{Success: true, Message: answer}
	}
}

// CompetitivePricing answers get_competitive_pricing once all four
// required parameters are present; missing ones keep the current node
// so the LLM can ask for what's left, per router.py's "ask for missing
// parameters ONE AT A TIME" instruction.
func CompetitivePricing(lookup PricingLookup) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		age, ok := parseDigits(args["age"])
		gender := strings.TrimSpace(argString(args, "gender"))
		sport := strings.TrimSpace(argString(args, "sport"))
		region := strings.TrimSpace(argString(args, "region"))
		if !ok || gender == "" || sport == "" || region == "" {
			return state.Result{Success: false, Message: "I still need a few details to quote the price."}
		}
		price, found := lookup(age, gender, sport, region)
		if !found {
			return state.Result{Success: false, Message: "I couldn't find a price for that combination."}
		}
		return state.Result{Success: true, Message: price}
	}
}

// NonAgonisticPricing answers get_price_non_agonistic_visit, which
// (unlike the competitive-sport variant) takes no required parameters.
func NonAgonisticPricing(lookup InfoLookup) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		answer, found := lookup("non_agonistic")
		if !found {
			return state.Result{Success: false, Message: "I don't have that pricing information."}
		}
		return state.Result{Success: true, Message: answer}
	}
}

// StartBooking begins the booking flow, routing straight to service
// search — the sports-medicine exception and doctor-name handling
// described in router.py are prompt-level instructions to the LLM, not
// handler logic, so this handler only needs to record the request and
// transition.
func StartBooking(args map[string]any, st *state.State) state.Result {
	req := strings.TrimSpace(argString(args, "service_request"))
	if req == "" {
		return state.Result{Success: false, Message: "What service would you like to book?"}
	}
	st.Lock()
	st.Extra["initial_booking_request"] = req
	if extra := strings.TrimSpace(argString(args, "additional_service_request")); extra != "" {
		st.Extra["additional_booking_request"] = extra
	}
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameServiceSearch}
}

// RequestTransfer implements the business-status-closed transfer
// refusal from spec.md §4.6: when the business is closed or
// after-hours, the transfer node must refuse rather than hand off.
func RequestTransfer(businessStatus func() string) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		status := businessStatus()
		if status == "close" || status == "after_hours" {
			return state.Result{
				Success: false,
				Message: "Mi dispiace, il call center è attualmente chiuso. Non posso trasferirla a un operatore in questo momento.",
			}
		}
		return state.Result{Success: true, NextNode: nodes.NameErrorTransfer}
	}
}

// CancelPreviousAppointment always transfers to an operator, regardless
// of business status per the original's behavior for a previously-booked
// appointment change.
func CancelPreviousAppointment(args map[string]any, st *state.State) state.Result {
	return state.Result{Success: true, NextNode: nodes.NameErrorTransfer}
}

// CancelAndRestart clears the in-progress booking state and returns to
// the router, grounded on manager.py's reset_context handling for the
// router node. The router node keeps the APPEND context strategy, so the
// LLM context is not reset by this transition.
func CancelAndRestart(args map[string]any, st *state.State) state.Result {
	st.Lock()
	st.SelectedServices = nil
	st.ServiceGroups = nil
	st.BookingScenario = ""
	st.CurrentGroupIndex = 0
	st.SelectedCenter = nil
	st.BookedSlots = nil
	st.Unlock()
	return state.Result{Success: true, Message: "La prenotazione è stata annullata. Come posso aiutarti?", NextNode: nodes.NameRouter}
}

// PerformBookingCreation is invoked after ConfirmDetailsAndCreateBooking
// has validated preconditions; the Manager supplies the actual commit
// via internal/booking.Orchestrator and reports back through this
// closure so the handler stays a pure function of its inputs.
func PerformBookingCreation(commit func(st *state.State) (code string, err error)) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		code, err := commit(st)
		if err != nil {
			return state.Result{
				Success:  false,
				Message:  "Booking creation failed. Please try again.",
				NextNode: nodes.NameErrorTransfer,
			}
		}
		st.Lock()
		st.BookingCode = code
		st.Unlock()
		return state.Result{Success: true, Message: "Booking confirmed: " + code, NextNode: nodes.NameBookingSuccess}
	}
}
