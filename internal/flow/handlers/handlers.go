// Package handlers implements the Handler Set (C8): pure functions of
// (args, flow state) -> (result, next node), grounded on
// original_source/flows/handlers/*.py.
package handlers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
	"github.com/piemonte-health/callbridge/internal/search"
)

// Handler is the shape every dispatchable function has: it reads args
// and the call's State, mutates State in place for its own side
// effects, and returns a Result plus the node to transition to.
type Handler func(args map[string]any, st *state.State) state.Result

var whitespace = regexp.MustCompile(`\s+`)

func normalizeServiceName(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// findExactMatch implements _find_exact_match: case-folded,
// whitespace-collapsed equality between the search term and any
// returned service name, linear over the set.
func findExactMatch(searchTerm string, services []search.Service) (search.Service, bool) {
	target := normalizeServiceName(searchTerm)
	for _, svc := range services {
		if normalizeServiceName(svc.Name) == target {
			return svc, true
		}
	}
	return search.Service{}, false
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// SearchHealthServices runs the fuzzy search engine and auto-selects on
// an exact name match, skipping the selection node entirely — the
// Exact-match autoselection invariant from spec.md §4.7.
func SearchHealthServices(engine *search.Engine) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		term := strings.TrimSpace(argString(args, "search_term"))
		if term == "" {
			return state.Result{Success: false, Message: "Please tell me which service you are looking for."}
		}

		result := engine.Search(term, search.DefaultLimit)
		if !result.Found {
			return state.Result{Success: false, Message: result.Message, NextNode: nodes.NameServiceSearch}
		}

		if exact, ok := findExactMatch(term, result.Services); ok {
			st.Lock()
			appendSelectedService(st, state.Service{UUID: exact.UUID, Name: exact.Name, Code: exact.Code})
			st.Unlock()
			return state.Result{
				Success:  true,
				Message:  "Found exact match: " + exact.Name,
				Data:     map[string]any{"service_name": exact.Name, "service_uuid": exact.UUID},
				NextNode: nodes.NamePatientInfoAddress,
			}
		}

		data := map[string]any{"services": result.Services}
		return state.Result{Success: true, Data: data, NextNode: nodes.NameServiceSelection}
	}
}

// SelectService handles an explicit pick from the presented results.
func SelectService(catalog func(uuid string) (search.Service, bool)) Handler {
	return func(args map[string]any, st *state.State) state.Result {
		uuid := strings.TrimSpace(argString(args, "service_uuid"))
		svc, ok := catalog(uuid)
		if !ok {
			return state.Result{Success: false, Message: "I couldn't find that service, please choose again."}
		}
		st.Lock()
		appendSelectedService(st, state.Service{UUID: svc.UUID, Name: svc.Name, Code: svc.Code})
		st.Unlock()
		return state.Result{Success: true, Message: "Selected " + svc.Name, NextNode: nodes.NamePatientInfoAddress}
	}
}

// RefineSearch repeats the search with a narrower term, same
// exact-match autoselection as the first search.
func RefineSearch(engine *search.Engine) Handler {
	searchFn := SearchHealthServices(engine)
	return func(args map[string]any, st *state.State) state.Result {
		return searchFn(map[string]any{"search_term": argString(args, "refined_search_term")}, st)
	}
}

// CollectAddress stores the patient address and moves to gender.
func CollectAddress(args map[string]any, st *state.State) state.Result {
	addr := strings.TrimSpace(argString(args, "address"))
	if addr == "" {
		return state.Result{Success: false, Message: "Please provide your address."}
	}
	st.Lock()
	st.PatientAddress = addr
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NamePatientInfoGender}
}

// CollectGender stores the patient gender and moves to date of birth.
func CollectGender(args map[string]any, st *state.State) state.Result {
	gender := strings.ToLower(strings.TrimSpace(argString(args, "gender")))
	if gender == "" {
		return state.Result{Success: false, Message: "Please tell me your gender."}
	}
	st.Lock()
	st.PatientGender = gender
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NamePatientInfoDOB}
}

// CollectDateOfBirth stores the DOB and moves to the verification node.
func CollectDateOfBirth(args map[string]any, st *state.State) state.Result {
	dob := strings.TrimSpace(argString(args, "date_of_birth"))
	if dob == "" {
		return state.Result{Success: false, Message: "Please provide your date of birth."}
	}
	st.Lock()
	st.PatientDOB = dob
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NamePatientInfoVerify}
}

// VerifyPatientInfo either proceeds to center search or restarts address
// collection.
func VerifyPatientInfo(args map[string]any, st *state.State) state.Result {
	if argBool(args, "confirmed") {
		return state.Result{Success: true, NextNode: nodes.NameBookingCenterSearch}
	}
	return state.Result{Success: false, Message: "Let's collect your details again.", NextNode: nodes.NamePatientInfoAddress}
}

var confirmWords = map[string]bool{
	"yes": true, "si": true, "sì": true, "correct": true, "okay": true, "ok": true, "va bene": true,
}

func isConfirmWord(s string) bool {
	return confirmWords[strings.ToLower(strings.TrimSpace(s))]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollectPhone implements the Phone confirmation invariant from spec.md
// §4.7: confirming the caller-ID phone (and having it available) adopts
// it verbatim and skips the explicit confirmation node; any other input
// must carry >= 8 digits and routes through confirmation.
func CollectPhone(args map[string]any, st *state.State) state.Result {
	raw := argString(args, "phone")
	phone := strings.TrimSpace(strings.ToLower(raw))
	if phone == "" {
		return state.Result{Success: false, Message: "Please provide a valid phone number."}
	}

	st.Lock()
	callerPhone := st.CallerPhone
	callerKnown := st.CallerPhoneKnown
	st.Unlock()

	if isConfirmWord(phone) && callerKnown {
		cleaned := digitsOnly(callerPhone)
		st.Lock()
		st.PatientPhone = cleaned
		st.Unlock()
		return state.Result{
			Success:  true,
			Message:  "Phone number confirmed (caller phone)",
			Data:     map[string]any{"phone": cleaned, "skipped_confirmation": true},
			NextNode: nodes.NameCollectReminderAuth,
		}
	}

	if isConfirmWord(phone) && !callerKnown {
		return state.Result{Success: false, Message: "I don't have your caller number on file, please say it."}
	}

	cleaned := digitsOnly(phone)
	if len(cleaned) < 8 {
		return state.Result{Success: false, Message: "Please provide a valid phone number with at least 8 digits"}
	}

	st.Lock()
	st.PatientPhone = cleaned
	st.Unlock()
	return state.Result{
		Success:  true,
		Message:  "Phone number collected successfully",
		Data:     map[string]any{"phone": cleaned},
		NextNode: nodes.NameConfirmPhone,
	}
}

// ConfirmPhone either proceeds to reminder authorization or loops back
// to phone collection.
func ConfirmPhone(args map[string]any, st *state.State) state.Result {
	switch strings.ToLower(strings.TrimSpace(argString(args, "action"))) {
	case "confirm", "correct", "si", "sì", "yes", "ok", "okay", "va bene":
		return state.Result{Success: true, NextNode: nodes.NameCollectReminderAuth}
	case "change":
		return state.Result{Success: false, Message: "Let's collect your phone number again", NextNode: nodes.NameCollectPhone}
	default:
		return state.Result{Success: false, Message: "Please confirm if the phone number is correct or if you want to change it"}
	}
}

// CollectFirstName stores the first name and moves to surname.
func CollectFirstName(args map[string]any, st *state.State) state.Result {
	name := strings.TrimSpace(argString(args, "first_name"))
	if name == "" {
		return state.Result{Success: false, Message: "Please provide your first name."}
	}
	st.Lock()
	st.PatientFirstName = name
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameCollectSurname}
}

// CollectSurname stores the surname and moves to phone collection.
func CollectSurname(args map[string]any, st *state.State) state.Result {
	surname := strings.TrimSpace(argString(args, "surname"))
	if surname == "" {
		return state.Result{Success: false, Message: "Please provide your surname."}
	}
	st.Lock()
	st.PatientSurname = surname
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameCollectPhone}
}

// CollectReminderAuthorization stores the preference and moves to
// marketing authorization.
func CollectReminderAuthorization(args map[string]any, st *state.State) state.Result {
	st.Lock()
	st.ReminderAuth = argBool(args, "reminder_authorization")
	st.Unlock()
	return state.Result{Success: true, NextNode: nodes.NameCollectMarketingAuth}
}

// CollectMarketingAuthorization stores the preference; the caller still
// needs to confirm details via ConfirmDetailsAndCreateBooking before
// booking proceeds.
func CollectMarketingAuthorization(args map[string]any, st *state.State) state.Result {
	st.Lock()
	st.MarketingAuth = argBool(args, "marketing_authorization")
	st.Unlock()
	return state.Result{Success: true}
}

// ConfirmDetailsAndCreateBooking implements the Slot commit precondition
// invariant: refuses with an error node when booked_slots is empty,
// otherwise proceeds to the booking-processing node.
func ConfirmDetailsAndCreateBooking(args map[string]any, st *state.State) state.Result {
	if !argBool(args, "details_confirmed") {
		return state.Result{Success: false, Message: "Let's collect your details again", NextNode: nodes.NameCollectFirstName}
	}

	st.Lock()
	hasSlots := len(st.BookedSlots) > 0
	hasServices := len(st.SelectedServices) > 0
	firstName, surname, phone := st.PatientFirstName, st.PatientSurname, st.PatientPhone
	st.Unlock()

	if !hasSlots {
		return state.Result{
			Success:  false,
			Message:  "Slot reservation failed - cannot complete booking",
			NextNode: nodes.NameErrorTransfer,
		}
	}
	if !hasServices || firstName == "" || surname == "" || phone == "" {
		return state.Result{
			Success:  false,
			Message:  "Missing required information for booking",
			NextNode: nodes.NameErrorTransfer,
		}
	}

	return state.Result{Success: true, Message: "Starting booking creation", NextNode: nodes.NameBookingProcessing}
}

// appendSelectedService records a newly-selected service against both the
// flat SelectedServices list and the current service group, creating that
// group on first use. Callers must already hold st's lock. This is the
// production counterpart of the group accumulation the source's sorting_api
// integration would otherwise perform: every "add_another" loop back to
// service search (ConfirmBookingSummary) advances CurrentGroupIndex, and
// each such iteration becomes its own single-service group, matching
// manager.py's service_groups shape of multiple is_group: false entries.
func appendSelectedService(st *state.State, svc state.Service) {
	st.SelectedServices = append(st.SelectedServices, svc)
	for len(st.ServiceGroups) <= st.CurrentGroupIndex {
		st.ServiceGroups = append(st.ServiceGroups, state.ServiceGroup{})
	}
	g := &st.ServiceGroups[st.CurrentGroupIndex]
	g.Services = append(g.Services, svc)
}

// GroupSlotAssignment maps health services to the booked slot uuid that
// covers them, the Group-to-slot mapping at commit invariant: when
// service_groups is populated, every service in group i goes with
// booked_slots[i]'s uuid; otherwise a legacy 1:1 positional mapping
// between selected services and booked slots applies.
func GroupSlotAssignment(groups []state.ServiceGroup, slots []state.BookedSlot, services []state.Service) map[string]string {
	assignment := map[string]string{}
	if len(groups) > 0 {
		for i, g := range groups {
			var slotUUID string
			for _, s := range slots {
				if s.GroupIndex == i {
					slotUUID = s.SlotUUID
					break
				}
			}
			for _, svc := range g.Services {
				assignment[svc.UUID] = slotUUID
			}
		}
		return assignment
	}

	for i, svc := range services {
		if i < len(slots) {
			assignment[svc.UUID] = slots[i].SlotUUID
		}
	}
	return assignment
}

// PatientPayload is the booking-commit patient block; existing patients
// send only their uuid, new patients send full details uppercase per
// spec.md §4.7's Patient payload invariant.
type PatientPayload struct {
	UUID    string
	Name    string
	Surname string
	Email   string
	Phone   string
	DOB     string
	Gender  string
}

// BuildPatientPayload implements the Patient payload invariant.
func BuildPatientPayload(foundInDB bool, dbID string, st *state.State) PatientPayload {
	st.Lock()
	defer st.Unlock()

	if foundInDB && dbID != "" {
		return PatientPayload{UUID: dbID}
	}
	return PatientPayload{
		Name:    strings.ToUpper(st.PatientFirstName),
		Surname: strings.ToUpper(st.PatientSurname),
		Email:   st.PatientEmail,
		Phone:   st.PatientPhone,
		DOB:     st.PatientDOB,
		Gender:  strings.ToUpper(st.PatientGender),
	}
}

// parseDigits is a small helper used by the pricing handlers for an
// "age" argument that may arrive as a string or a number from the LLM.
func parseDigits(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
