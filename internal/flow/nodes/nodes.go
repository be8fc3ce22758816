// Package nodes is the static Flow Node Graph (C6): a fixed table of
// conversation nodes plus the global function set attached to every one
// of them, grounded on original_source/flows/nodes/*.py and
// original_source/flows/manager.py.
package nodes

// ContextStrategy controls whether a node transition drops prior LLM
// context (RESET) or keeps appending to it (APPEND, the default).
type ContextStrategy int

const (
	ContextAppend ContextStrategy = iota
	ContextReset
)

// Function is a typed tool schema the LLM may invoke at a node.
type Function struct {
	Name        string
	Description string
	Properties  map[string]string
	Required    []string
	// HandlerRef names the internal/flow/handlers function this tool
	// dispatches to; the Manager resolves it through a registry rather
	// than holding a direct function value, so the node table stays a
	// pure data declaration.
	HandlerRef string
}

// Node is one conversation state: its messages and the tools the LLM may
// call while in it.
type Node struct {
	Name                string
	RoleMessage         string
	TaskMessage         string
	Functions           []Function
	RespondImmediately  bool
	ContextStrategy     ContextStrategy
}

// Names of every node in the static graph, grounded on the node files
// under original_source/flows/nodes/.
const (
	NameGreeting               = "greeting"
	NameRouter                 = "router"
	NameServiceSearch          = "service_search"
	NameServiceSelection       = "service_selection"
	NamePatientInfoAddress     = "patient_info_address"
	NamePatientInfoGender      = "patient_info_gender"
	NamePatientInfoDOB         = "patient_info_dob"
	NamePatientInfoVerify      = "patient_info_verify"
	NameBookingCenterSearch    = "booking_center_search"
	NameBookingCerbaCard       = "booking_cerba_card"
	NameBookingDatetime        = "booking_datetime"
	NameBookingSlotSelection   = "booking_slot_selection"
	NameBookingSummary         = "booking_summary"
	NameCollectFirstName       = "collect_first_name"
	NameCollectSurname         = "collect_surname"
	NameCollectPhone           = "collect_phone"
	NameConfirmPhone           = "confirm_phone"
	NameCollectReminderAuth    = "collect_reminder_authorization"
	NameCollectMarketingAuth   = "collect_marketing_authorization"
	NameBookingProcessing      = "booking_processing"
	NameBookingSuccess         = "booking_success"
	NameErrorTransfer          = "error_transfer"
)

// Global function names, attached to every node per spec.md §4.6 — they
// may fire on any turn regardless of which node is current.
const (
	FnKnowledgeBaseNew          = "knowledge_base_new"
	FnGetCompetitivePricing     = "get_competitive_pricing"
	FnGetPriceNonAgonisticVisit = "get_price_non_agonistic_visit"
	FnGetExamByVisit            = "get_exam_by_visit"
	FnGetExamBySport            = "get_exam_by_sport"
	FnCallGraph                 = "call_graph"
	FnRequestTransfer           = "request_transfer"
	FnStartBooking              = "start_booking"
	FnCancelPreviousAppointment = "cancel_previous_appointment"
	FnCancelAndRestart          = "cancel_and_restart"
)

// GlobalFunctions is the fixed tool set available at every node,
// grounded on router.py's docstring and flows/global_functions.py's
// GLOBAL_FUNCTIONS list.
var GlobalFunctions = []Function{
	{Name: FnKnowledgeBaseNew, Description: "Answer FAQs, preparations, documents and booking-process questions.", Properties: map[string]string{"query": "string"}, Required: []string{"query"}, HandlerRef: "KnowledgeBase"},
	{Name: FnGetCompetitivePricing, Description: "Agonistic sports-visit pricing.", Properties: map[string]string{"age": "integer", "gender": "string", "sport": "string", "region": "string"}, Required: []string{"age", "gender", "sport", "region"}, HandlerRef: "CompetitivePricing"},
	{Name: FnGetPriceNonAgonisticVisit, Description: "Non-agonistic visit pricing.", HandlerRef: "NonAgonisticPricing"},
	{Name: FnGetExamByVisit, Description: "Exams required for a visit-type code.", Properties: map[string]string{"visit_code": "string"}, Required: []string{"visit_code"}, HandlerRef: "ExamByVisit"},
	{Name: FnGetExamBySport, Description: "Exams required for a specific sport.", Properties: map[string]string{"sport": "string"}, Required: []string{"sport"}, HandlerRef: "ExamBySport"},
	{Name: FnCallGraph, Description: "Clinic hours, closures, blood-collection times.", Properties: map[string]string{"query": "string"}, Required: []string{"query"}, HandlerRef: "CallGraph"},
	{Name: FnRequestTransfer, Description: "Transfer to a human operator.", Properties: map[string]string{"immediate": "boolean"}, HandlerRef: "RequestTransfer"},
	{Name: FnStartBooking, Description: "Start appointment booking.", Properties: map[string]string{"service_request": "string", "additional_service_request": "string"}, Required: []string{"service_request"}, HandlerRef: "StartBooking"},
	{Name: FnCancelPreviousAppointment, Description: "Transfer to an operator to cancel or reschedule an already-booked appointment.", HandlerRef: "CancelPreviousAppointment"},
	{Name: FnCancelAndRestart, Description: "Cancel the booking in progress and return to the router.", HandlerRef: "CancelAndRestart"},
}

// table is the static node graph, indexed by name.
var table = map[string]Node{
	NameGreeting: {
		Name:        NameGreeting,
		RoleMessage: "Ualà, virtual assistant for Cerba HealthCare Piemonte, opening contact.",
		TaskMessage: "Greet the caller and ask how you can help.",
		Functions:   nil,
		RespondImmediately: true,
	},
	NameRouter: {
		Name:        NameRouter,
		RoleMessage: "Ualà, initial contact point; global functions handle info, booking and transfer.",
		TaskMessage: "Route the caller's request to the right tool: info, pricing, booking, cancellation or transfer.",
		Functions:   nil,
		RespondImmediately: true,
	},
	NameServiceSearch: {
		Name:        NameServiceSearch,
		TaskMessage: "Collect the requested service name and search the catalog.",
		Functions: []Function{
			{Name: "search_health_services", Description: "Search the service catalog by free text.", Properties: map[string]string{"search_term": "string"}, Required: []string{"search_term"}, HandlerRef: "SearchHealthServices"},
		},
	},
	NameServiceSelection: {
		Name:        NameServiceSelection,
		TaskMessage: "Present the search results and let the caller pick one.",
		Functions: []Function{
			{Name: "select_service", Description: "Select a service from the presented results.", Properties: map[string]string{"service_uuid": "string"}, Required: []string{"service_uuid"}, HandlerRef: "SelectService"},
			{Name: "refine_search", Description: "Refine the search with a different term.", Properties: map[string]string{"refined_search_term": "string"}, Required: []string{"refined_search_term"}, HandlerRef: "RefineSearch"},
		},
	},
	NamePatientInfoAddress: {
		Name:        NamePatientInfoAddress,
		TaskMessage: "Ask for the patient's address.",
		Functions: []Function{
			{Name: "collect_address", Properties: map[string]string{"address": "string"}, Required: []string{"address"}, HandlerRef: "CollectAddress"},
		},
	},
	NamePatientInfoGender: {
		Name:        NamePatientInfoGender,
		TaskMessage: "Ask for the patient's gender.",
		Functions: []Function{
			{Name: "collect_gender", Properties: map[string]string{"gender": "string"}, Required: []string{"gender"}, HandlerRef: "CollectGender"},
		},
	},
	NamePatientInfoDOB: {
		Name:        NamePatientInfoDOB,
		TaskMessage: "Ask for the patient's date of birth.",
		Functions: []Function{
			{Name: "collect_date_of_birth", Properties: map[string]string{"date_of_birth": "string"}, Required: []string{"date_of_birth"}, HandlerRef: "CollectDateOfBirth"},
		},
	},
	NamePatientInfoVerify: {
		Name:            NamePatientInfoVerify,
		TaskMessage:     "Confirm the collected address, gender and date of birth before searching centers.",
		ContextStrategy: ContextReset,
		Functions: []Function{
			{Name: "verify_patient_info", Properties: map[string]string{"confirmed": "boolean"}, Required: []string{"confirmed"}, HandlerRef: "VerifyPatientInfo"},
		},
	},
	NameBookingCenterSearch: {
		Name:        NameBookingCenterSearch,
		TaskMessage: "Search health centers offering the selected service near the patient.",
		Functions: []Function{
			{Name: "search_health_centers", HandlerRef: "SearchHealthCenters"},
		},
	},
	NameBookingCerbaCard: {
		Name:        NameBookingCerbaCard,
		TaskMessage: "Ask whether the patient holds a Cerba membership card.",
		Functions: []Function{
			{Name: "collect_cerba_membership", Properties: map[string]string{"is_member": "boolean"}, Required: []string{"is_member"}, HandlerRef: "CollectCerbaMembership"},
		},
	},
	NameBookingDatetime: {
		Name:        NameBookingDatetime,
		TaskMessage: "Ask for the preferred date and time.",
		Functions: []Function{
			{Name: "collect_preferred_datetime", Properties: map[string]string{"preferred_date": "string", "preferred_time": "string"}, Required: []string{"preferred_date"}, HandlerRef: "CollectPreferredDatetime"},
		},
	},
	NameBookingSlotSelection: {
		Name:            NameBookingSlotSelection,
		TaskMessage:     "Present available slots and let the caller choose one.",
		ContextStrategy: ContextReset,
		Functions: []Function{
			{Name: "select_slot", Properties: map[string]string{"slot_id": "string"}, Required: []string{"slot_id"}, HandlerRef: "SelectSlot"},
		},
	},
	NameBookingSummary: {
		Name:        NameBookingSummary,
		TaskMessage: "Summarize the booking so far and ask whether to continue with another service.",
		Functions: []Function{
			{Name: "confirm_booking_summary", Properties: map[string]string{"add_another": "boolean"}, Required: []string{"add_another"}, HandlerRef: "ConfirmBookingSummary"},
		},
	},
	NameCollectFirstName: {
		Name:        NameCollectFirstName,
		TaskMessage: "Ask for the patient's first name.",
		Functions: []Function{
			{Name: "collect_first_name", Properties: map[string]string{"first_name": "string"}, Required: []string{"first_name"}, HandlerRef: "CollectFirstName"},
		},
	},
	NameCollectSurname: {
		Name:        NameCollectSurname,
		TaskMessage: "Ask for the patient's surname.",
		Functions: []Function{
			{Name: "collect_surname", Properties: map[string]string{"surname": "string"}, Required: []string{"surname"}, HandlerRef: "CollectSurname"},
		},
	},
	NameCollectPhone: {
		Name:        NameCollectPhone,
		TaskMessage: "Ask whether the caller-id phone number is fine to use, or collect a different one.",
		Functions: []Function{
			{Name: "collect_phone", Properties: map[string]string{"phone": "string"}, Required: []string{"phone"}, HandlerRef: "CollectPhone"},
		},
	},
	NameConfirmPhone: {
		Name:        NameConfirmPhone,
		TaskMessage: "Read back the collected phone number and ask for confirmation.",
		Functions: []Function{
			{Name: "confirm_phone", Properties: map[string]string{"action": "string"}, Required: []string{"action"}, HandlerRef: "ConfirmPhone"},
		},
	},
	NameCollectReminderAuth: {
		Name:        NameCollectReminderAuth,
		TaskMessage: "Ask for reminder-message authorization.",
		Functions: []Function{
			{Name: "collect_reminder_authorization", Properties: map[string]string{"reminder_authorization": "boolean"}, Required: []string{"reminder_authorization"}, HandlerRef: "CollectReminderAuthorization"},
		},
	},
	NameCollectMarketingAuth: {
		Name:        NameCollectMarketingAuth,
		TaskMessage: "Ask for marketing-communication authorization, then ask to confirm all details before booking.",
		Functions: []Function{
			{Name: "collect_marketing_authorization", Properties: map[string]string{"marketing_authorization": "boolean"}, Required: []string{"marketing_authorization"}, HandlerRef: "CollectMarketingAuthorization"},
			{Name: "confirm_details_and_create_booking", Properties: map[string]string{"details_confirmed": "boolean"}, Required: []string{"details_confirmed"}, HandlerRef: "ConfirmDetailsAndCreateBooking"},
		},
	},
	NameBookingProcessing: {
		Name:               NameBookingProcessing,
		TaskMessage:        "Tell the caller the booking is being created.",
		RespondImmediately: true,
		Functions: []Function{
			{Name: "perform_booking_creation", HandlerRef: "PerformBookingCreation"},
		},
	},
	NameBookingSuccess: {
		Name:        NameBookingSuccess,
		TaskMessage: "Confirm the completed booking and ask if there is anything else.",
		Functions:   nil,
	},
	NameErrorTransfer: {
		Name:        NameErrorTransfer,
		TaskMessage: "Apologize and transfer the caller to a human operator.",
		Functions:   nil,
	},
}

// Get returns the static node by name, applying the global function set
// to every node per spec.md §4.6.
func Get(name string) (Node, bool) {
	n, ok := table[name]
	if !ok {
		return Node{}, false
	}
	n.Functions = append(append([]Function{}, n.Functions...), GlobalFunctions...)
	return n, true
}
