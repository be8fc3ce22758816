package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
	"github.com/piemonte-health/callbridge/internal/search"
)

func catalog() []search.Service {
	return []search.Service{
		{Name: "Radiografia caviglia", Code: "RX-CAV"},
		{Name: "Analisi del sangue", Code: "LAB-001"},
	}
}

func TestSearchHealthServicesExactMatchSkipsSelection(t *testing.T) {
	engine := search.NewEngine(catalog())
	h := SearchHealthServices(engine)
	st := state.New()

	result := h(map[string]any{"search_term": "radiografia caviglia"}, st)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NamePatientInfoAddress, result.NextNode)
	assert.Len(t, st.SelectedServices, 1)
}

func TestSearchHealthServicesNoExactMatchGoesToSelection(t *testing.T) {
	engine := search.NewEngine(catalog())
	h := SearchHealthServices(engine)
	st := state.New()

	result := h(map[string]any{"search_term": "analisi sangue esame"}, st)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NameServiceSelection, result.NextNode)
}

func TestCollectPhoneAdoptsCallerIDOnConfirm(t *testing.T) {
	st := state.New()
	st.CallerPhone = "+39 333 123 4567"
	st.CallerPhoneKnown = true

	result := CollectPhone(map[string]any{"phone": "si"}, st)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NameCollectReminderAuth, result.NextNode)
	assert.Equal(t, "393331234567", st.PatientPhone)
}

func TestCollectPhoneRejectsShortNumber(t *testing.T) {
	st := state.New()
	result := CollectPhone(map[string]any{"phone": "123"}, st)
	assert.False(t, result.Success)
}

func TestCollectPhoneDifferentNumberGoesToConfirmation(t *testing.T) {
	st := state.New()
	result := CollectPhone(map[string]any{"phone": "333 1234567"}, st)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NameConfirmPhone, result.NextNode)
}

func TestConfirmDetailsRefusesWithoutBookedSlots(t *testing.T) {
	st := state.New()
	st.SelectedServices = []state.Service{{UUID: "s1", Name: "x"}}
	st.PatientFirstName, st.PatientSurname, st.PatientPhone = "A", "B", "12345678"

	result := ConfirmDetailsAndCreateBooking(map[string]any{"details_confirmed": true}, st)
	assert.False(t, result.Success)
	assert.Equal(t, nodes.NameErrorTransfer, result.NextNode)
}

func TestConfirmDetailsProceedsWhenComplete(t *testing.T) {
	st := state.New()
	st.SelectedServices = []state.Service{{UUID: "s1", Name: "x"}}
	st.BookedSlots = []state.BookedSlot{{SlotUUID: "slot1"}}
	st.PatientFirstName, st.PatientSurname, st.PatientPhone = "A", "B", "12345678"

	result := ConfirmDetailsAndCreateBooking(map[string]any{"details_confirmed": true}, st)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NameBookingProcessing, result.NextNode)
}

func TestGroupSlotAssignmentUsesGroupsWhenPresent(t *testing.T) {
	groups := []state.ServiceGroup{
		{Services: []state.Service{{UUID: "a"}, {UUID: "b"}}},
		{Services: []state.Service{{UUID: "c"}}},
	}
	slots := []state.BookedSlot{{SlotUUID: "slot-0", GroupIndex: 0}, {SlotUUID: "slot-1", GroupIndex: 1}}

	assignment := GroupSlotAssignment(groups, slots, nil)
	assert.Equal(t, "slot-0", assignment["a"])
	assert.Equal(t, "slot-0", assignment["b"])
	assert.Equal(t, "slot-1", assignment["c"])
}

func TestGroupSlotAssignmentFallsBackToPositional(t *testing.T) {
	services := []state.Service{{UUID: "a"}, {UUID: "b"}}
	slots := []state.BookedSlot{{SlotUUID: "slot-0"}, {SlotUUID: "slot-1"}}

	assignment := GroupSlotAssignment(nil, slots, services)
	assert.Equal(t, "slot-0", assignment["a"])
	assert.Equal(t, "slot-1", assignment["b"])
}

func TestBuildPatientPayloadExistingSendsOnlyUUID(t *testing.T) {
	st := state.New()
	st.PatientFirstName = "mario"
	payload := BuildPatientPayload(true, "db-uuid-1", st)
	assert.Equal(t, "db-uuid-1", payload.UUID)
	assert.Empty(t, payload.Name)
}

func TestBuildPatientPayloadNewUppercasesNameAndGender(t *testing.T) {
	st := state.New()
	st.PatientFirstName = "mario"
	st.PatientSurname = "rossi"
	st.PatientGender = "m"
	payload := BuildPatientPayload(false, "", st)
	assert.Equal(t, "MARIO", payload.Name)
	assert.Equal(t, "ROSSI", payload.Surname)
	assert.Equal(t, "M", payload.Gender)
}

func TestAppendSelectedServiceGroupsByCurrentGroupIndex(t *testing.T) {
	st := state.New()
	appendSelectedService(st, state.Service{UUID: "a", Name: "Radiografia"})
	st.CurrentGroupIndex++
	appendSelectedService(st, state.Service{UUID: "b", Name: "Analisi"})

	assert.Len(t, st.SelectedServices, 2)
	assert.Len(t, st.ServiceGroups, 2)
	assert.Equal(t, "a", st.ServiceGroups[0].Services[0].UUID)
	assert.Equal(t, "b", st.ServiceGroups[1].Services[0].UUID)
}

func TestSearchHealthServicesExactMatchCarriesRealUUID(t *testing.T) {
	engine := search.NewEngine([]search.Service{{UUID: "svc-uuid-1", Name: "Radiografia caviglia", Code: "RX-CAV"}})
	h := SearchHealthServices(engine)
	st := state.New()

	result := h(map[string]any{"search_term": "radiografia caviglia"}, st)
	assert.True(t, result.Success)
	assert.Equal(t, "svc-uuid-1", st.SelectedServices[0].UUID)
	assert.Equal(t, "svc-uuid-1", result.Data["service_uuid"])
}
