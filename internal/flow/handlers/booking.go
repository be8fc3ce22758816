package handlers

import (
	"strings"

	"github.com/piemonte-health/callbridge/internal/booking"
	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
)

// CenterSearcher finds centers for the currently selected services and
// patient info; wired by the Manager to internal/booking.Orchestrator.
type CenterSearcher func(st *state.State) ([]booking.HealthCenter, error)

// SearchHealthCenters runs the center search and moves to the Cerba-card
// question on success, or to the error/transfer node when the upstream
// lookup fails — center search has no local retry, matching §4.9's
// "fall through to center search" handling one level up (the Orchestrator
// already decides whether a sorting failure should retry).
func SearchHealthCenters(search CenterSearcher) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		centers, err := search(st)
		if err != nil || len(centers) == 0 {
			return state.Result{Success: false, Message: "I couldn't find a center for that service nearby.", NextNode: nodes.NameErrorTransfer}
		}
		c := centers[0]
		st.Lock()
		st.SelectedCenter = &state.Center{UUID: c.UUID, Name: c.Name, Address: c.Address, City: c.City}
		st.Unlock()
		return state.Result{Success: true, Data: map[string]any{"centers": centers}, NextNode: nodes.NameBookingCerbaCard}
	}
}

// CollectCerbaMembership stores the membership flag and moves to
// preferred-date collection.
func CollectCerbaMembership(args map[string]any, st *state.State) state.Result {
	st.Lock()
	st.IsCerbaMember = argBool(args, "is_member")
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameBookingDatetime}
}

// CollectPreferredDatetime stores the caller's preference and moves to
// slot search/selection.
func CollectPreferredDatetime(args map[string]any, st *state.State) state.Result {
	date := strings.TrimSpace(argString(args, "preferred_date"))
	if date == "" {
		return state.Result{Success: false, Message: "What date would you prefer?"}
	}
	st.Lock()
	st.PreferredDate = date
	st.PreferredTime = strings.TrimSpace(argString(args, "preferred_time"))
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameBookingSlotSelection}
}

// SlotSearcher finds slots for the current group; wired to
// internal/booking.Orchestrator.FindSlots.
type SlotSearcher func(st *state.State) ([]booking.Slot, error)

// SlotReserver reserves a chosen slot; wired to
// internal/booking.Orchestrator.ReserveSlot.
type SlotReserver func(st *state.State, slotUUID string) error

// SelectSlot reserves the chosen slot and appends a Slot Reservation
// record to booked_slots, per §4.9 step 3. A reservation failure keeps
// the caller on the slot-selection node rather than silently dropping
// the pick.
func SelectSlot(reserve SlotReserver) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		slotID := strings.TrimSpace(argString(args, "slot_id"))
		if slotID == "" {
			return state.Result{Success: false, Message: "Please choose one of the available slots."}
		}
		if err := reserve(st, slotID); err != nil {
			return state.Result{Success: false, Message: "That slot is no longer available, please pick another."}
		}
		st.Lock()
		st.BookedSlots = append(st.BookedSlots, state.BookedSlot{SlotUUID: slotID, GroupIndex: st.CurrentGroupIndex})
		st.Unlock()
		return state.Result{Success: true, NextNode: nodes.NameBookingSummary}
	}
}

// ConfirmBookingSummary either loops back to service search for another
// group/service or proceeds to patient-detail collection.
func ConfirmBookingSummary(args map[string]any, st *state.State) state.Result {
	if argBool(args, "add_another") {
		st.Lock()
		st.CurrentGroupIndex++
		st.Unlock()
		return state.Result{Success: true, NextNode: nodes.NameServiceSearch}
	}
	return state.Result{Success: true, NextNode: nodes.NameCollectFirstName}
}
