package main

import (
	"context"
	"fmt"

	"github.com/piemonte-health/callbridge/internal/booking"
	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/flow/state"
)

// centerSearchFunc adapts Orchestrator.FindCenters to handlers.CenterSearcher,
// pulling the caller's service selection and collected patient details off
// the flow state. Handler closures carry no context.Context of their own
// (the node graph's function signatures are synchronous per spec.md's
// single-goroutine-per-call dispatch model), so each one opens a fresh
// background context scoped to the single upstream call it makes.
func centerSearchFunc(o *booking.Orchestrator) handlers.CenterSearcher {
	return func(st *state.State) ([]booking.HealthCenter, error) {
		st.Lock()
		serviceUUIDs := serviceUUIDsForGroup(st, st.CurrentGroupIndex)
		gender, dob, address := st.PatientGender, st.PatientDOB, st.PatientAddress
		st.Unlock()
		return o.FindCenters(context.Background(), serviceUUIDs, gender, dob, address)
	}
}

// slotSearchFunc adapts Orchestrator.FindSlots, caching the returned slots
// on the call's Extra bag so slotReserveFunc can resolve the LLM's chosen
// slot_id back to the full booking.Slot the upstream reservation call
// needs (a selected slot is identified to the caller only by its UUID).
func slotSearchFunc(o *booking.Orchestrator) handlers.SlotSearcher {
	return func(st *state.State) ([]booking.Slot, error) {
		st.Lock()
		centerUUID := ""
		if st.SelectedCenter != nil {
			centerUUID = st.SelectedCenter.UUID
		}
		serviceUUIDs := serviceUUIDsForGroup(st, st.CurrentGroupIndex)
		st.Unlock()

		slots, err := o.FindSlots(context.Background(), centerUUID, serviceUUIDs)
		if err != nil {
			return nil, err
		}
		st.Lock()
		st.Extra["available_slots"] = slots
		st.Unlock()
		return slots, nil
	}
}

// slotReserveFunc adapts Orchestrator.ReserveSlot. The Handler Set only
// passes the chosen slot's UUID, so the matching booking.Slot is recovered
// from the cache slotSearchFunc populated for this call, then carried
// forward in reserved_slots: available_slots is overwritten by every
// subsequent group's search, but commitBookingFunc needs every group's
// reserved slot still resolvable at final commit time.
func slotReserveFunc(o *booking.Orchestrator) handlers.SlotReserver {
	return func(st *state.State, slotUUID string) error {
		st.Lock()
		slots, _ := st.Extra["available_slots"].([]booking.Slot)
		st.Unlock()

		for _, slot := range slots {
			if slot.UUID != slotUUID {
				continue
			}
			if err := o.ReserveSlot(context.Background(), slot); err != nil {
				return err
			}
			st.Lock()
			reserved, _ := st.Extra["reserved_slots"].(map[string]booking.Slot)
			if reserved == nil {
				reserved = map[string]booking.Slot{}
			}
			reserved[slot.UUID] = slot
			st.Extra["reserved_slots"] = reserved
			st.Unlock()
			return nil
		}
		return fmt.Errorf("slot %q is not among the last searched slots", slotUUID)
	}
}

// commitBookingFunc adapts Orchestrator.Commit and, when an OpenAI reasoner
// is configured, phrases the booking summary through booking.Reasoner.
// Annotate before any commit request is sent upstream — ClassifyScenario's
// deterministic rules always run; the reasoner only rewrites their
// human-readable text, never the scenario decision itself.
//
// Every service group is committed against its own reserved slot (the
// Group-to-slot mapping invariant), one Orchestrator.Commit call per
// group, each keyed by its slot's UUID so a duplicated tool call for the
// same group collapses onto the same singleflight attempt instead of
// spawning a second commit.
func commitBookingFunc(o *booking.Orchestrator, reasoner *booking.Reasoner) func(st *state.State) (string, error) {
	return func(st *state.State) (string, error) {
		st.Lock()
		groups := st.ServiceGroups
		if len(groups) == 0 && len(st.SelectedServices) > 0 {
			groups = []state.ServiceGroup{{Services: st.SelectedServices, IsGroup: false}}
		}
		selectedServices := st.SelectedServices
		bookedSlots := st.BookedSlots
		reserved, _ := st.Extra["reserved_slots"].(map[string]booking.Slot)
		phone, dob := st.PatientPhone, st.PatientDOB
		foundInDB, dbID := st.PatientFoundInDB, st.PatientDBID
		st.Unlock()

		if !foundInDB && dbID == "" {
			if match, err := o.LookupPatient(context.Background(), phone, dob); err == nil && match != nil {
				foundInDB, dbID = true, match.UUID
				st.Lock()
				st.PatientFoundInDB = true
				st.PatientDBID = match.UUID
				st.Unlock()
			}
		}

		classification := booking.ClassifyScenario(toBookingGroups(groups))
		if reasoner != nil {
			classification = reasoner.Annotate(context.Background(), toBookingGroups(groups), classification)
		}
		st.Lock()
		st.BookingScenario = string(classification.Scenario)
		st.Extra["booking_summary"] = classification.ServiceSummary
		st.Unlock()

		payload := handlers.BuildPatientPayload(foundInDB, dbID, st)
		patient := booking.Patient{
			UUID:        payload.UUID,
			FirstName:   payload.Name,
			Surname:     payload.Surname,
			Gender:      payload.Gender,
			DateOfBirth: payload.DOB,
			Phone:       payload.Phone,
		}

		assignment := handlers.GroupSlotAssignment(groups, bookedSlots, selectedServices)

		var lastCode string
		for i, group := range groups {
			serviceUUIDs := make([]string, 0, len(group.Services))
			var slotUUID string
			for _, svc := range group.Services {
				serviceUUIDs = append(serviceUUIDs, svc.UUID)
				if slotUUID == "" {
					slotUUID = assignment[svc.UUID]
				}
			}

			conf, err := o.Commit(context.Background(), booking.BookingRequest{
				IdempotencyKey: "slot:" + slotUUID,
				Slot:           reserved[slotUUID],
				Patient:        patient,
				ServiceUUIDs:   serviceUUIDs,
			})
			if err != nil {
				return "", fmt.Errorf("commit booking group %d: %w", i, err)
			}
			lastCode = conf.BookingCode
		}
		return lastCode, nil
	}
}

func serviceUUIDsForGroup(st *state.State, groupIndex int) []string {
	services := st.SelectedServices
	if groupIndex < len(st.ServiceGroups) {
		services = st.ServiceGroups[groupIndex].Services
	}
	uuids := make([]string, 0, len(services))
	for _, s := range services {
		uuids = append(uuids, s.UUID)
	}
	return uuids
}

func toBookingGroups(groups []state.ServiceGroup) []booking.ServiceGroup {
	out := make([]booking.ServiceGroup, 0, len(groups))
	for _, g := range groups {
		services := make([]booking.Service, 0, len(g.Services))
		for _, s := range g.Services {
			services = append(services, booking.Service{Name: s.Name, UUID: s.UUID})
		}
		out = append(out, booking.ServiceGroup{Services: services, IsGroup: g.IsGroup})
	}
	return out
}
