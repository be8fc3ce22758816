package flow

import (
	"github.com/piemonte-health/callbridge/internal/booking"
	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/flow/state"
	"github.com/piemonte-health/callbridge/internal/search"
)

// Dependencies bundles everything a Manager's handler registry needs;
// the Manager itself never imports internal/search or internal/booking
// directly, keeping its dispatch loop decoupled from how each tool is
// actually fulfilled.
type Dependencies struct {
	SearchEngine    *search.Engine
	Catalog         func(uuid string) (search.Service, bool)
	Orchestrator    *booking.Orchestrator
	KnowledgeBase   handlers.InfoLookup
	CallGraphLookup handlers.InfoLookup
	ExamByVisit     handlers.InfoLookup
	ExamBySport     handlers.InfoLookup
	Pricing         handlers.PricingLookup
	NonAgonistic    handlers.InfoLookup
	BusinessStatus  func() string
	CommitBooking   func(st *state.State) (string, error)
	CenterSearch    handlers.CenterSearcher
	SlotSearch      handlers.SlotSearcher
	SlotReserve     handlers.SlotReserver
}

// BuildRegistry wires concrete implementations into every HandlerRef
// named across the static node table and global function list.
func BuildRegistry(deps Dependencies) map[string]handlers.Handler {
	return map[string]handlers.Handler{
		"KnowledgeBase":                  handlers.KnowledgeBase(deps.KnowledgeBase),
		"CompetitivePricing":             handlers.CompetitivePricing(deps.Pricing),
		"NonAgonisticPricing":            handlers.NonAgonisticPricing(deps.NonAgonistic),
		"ExamByVisit":                    handlers.ExamByVisit(deps.ExamByVisit),
		"ExamBySport":                    handlers.ExamBySport(deps.ExamBySport),
		"CallGraph":                      handlers.CallGraph(deps.CallGraphLookup),
		"RequestTransfer":                handlers.RequestTransfer(deps.BusinessStatus),
		"StartBooking":                   handlers.StartBooking,
		"CancelPreviousAppointment":      handlers.CancelPreviousAppointment,
		"CancelAndRestart":               handlers.CancelAndRestart,
		"SearchHealthServices":           handlers.SearchHealthServices(deps.SearchEngine),
		"SelectService":                  handlers.SelectService(deps.Catalog),
		"RefineSearch":                   handlers.RefineSearch(deps.SearchEngine),
		"CollectAddress":                 handlers.CollectAddress,
		"CollectGender":                  handlers.CollectGender,
		"CollectDateOfBirth":             handlers.CollectDateOfBirth,
		"VerifyPatientInfo":              handlers.VerifyPatientInfo,
		"SearchHealthCenters":            handlers.SearchHealthCenters(deps.CenterSearch),
		"CollectCerbaMembership":         handlers.CollectCerbaMembership,
		"CollectPreferredDatetime":       handlers.CollectPreferredDatetime,
		"SelectSlot":                     handlers.SelectSlot(deps.SlotReserve),
		"ConfirmBookingSummary":          handlers.ConfirmBookingSummary,
		"CollectFirstName":               handlers.CollectFirstName,
		"CollectSurname":                 handlers.CollectSurname,
		"CollectPhone":                   handlers.CollectPhone,
		"ConfirmPhone":                   handlers.ConfirmPhone,
		"CollectReminderAuthorization":   handlers.CollectReminderAuthorization,
		"CollectMarketingAuthorization":  handlers.CollectMarketingAuthorization,
		"ConfirmDetailsAndCreateBooking": handlers.ConfirmDetailsAndCreateBooking,
		"PerformBookingCreation":         handlers.PerformBookingCreation(deps.CommitBooking),
	}
}
