// Package stats writes the tb_stat row that tracks a call end to end,
// grounded on original_source/PiemonteBridge/bridge_conn.py's
// save_call_to_supabase.
package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/piemonte-health/callbridge/internal/callerr"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/metrics"
)

// Writer persists the tb_stat row for a call. A write failure is logged and
// counted but never fails the caller's request path, matching
// save_call_to_supabase's "log and return false, never raise" contract.
type Writer struct {
	db  *pgxpool.Pool
	log *logging.Logger
}

// New builds a stats Writer over an existing connection pool.
func New(db *pgxpool.Pool, log *logging.Logger) *Writer {
	return &Writer{db: db, log: log}
}

const insertInitialRow = `
INSERT INTO tb_stat (
	call_id, interaction_id, phone_number, assistant_id,
	started_at, service, action, sentiment, esito_chiamata, summary,
	motivazione, patient_intent, transcript, region,
	ended_at, duration_seconds, cost, llm_token, call_type,
	patient_first_name, patient_surname, patient_dob, patient_gender, patient_address,
	selected_services, search_terms_used,
	selected_center_uuid, selected_center_name, selected_center_address, selected_center_city,
	booked_slots, preferred_date, preferred_time, appointment_datetime,
	booking_code, total_booking_cost,
	is_cerba_member, reminder_authorization, marketing_authorization,
	transfer_reason, transfer_timestamp,
	recording_url_stereo, recording_url_user, recording_url_bot, recording_duration_seconds
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
	$41, $42, $43, $44, $45
)
ON CONFLICT (call_id) DO NOTHING
`

// na is the placeholder the original writes into every not-yet-known text
// column, carried over so downstream readers of tb_stat see the same
// sentinel value regardless of which leg of the port wrote the row.
const na = "N/A"

// region is hardcoded the way bridge_conn.py hardcodes it for this bridge
// deployment.
const region = "Piemonte"

// WriteInitial creates the tb_stat row at call start, with every
// not-yet-known text column set to "N/A", typed columns NULL, llm_token 0
// and the authorization/membership flags false, to be filled in later by
// CompleteCall. Errors are logged and counted, never
// returned as fatal: a failed initial write must not abort the call.
func (w *Writer) WriteInitial(ctx context.Context, callID, interactionID, phoneNumber, assistantID string) error {
	interaction := interactionID
	if interaction == "" {
		interaction = na
	}
	phone := phoneNumber
	if phone == "" {
		phone = na
	}

	_, err := w.db.Exec(ctx, insertInitialRow,
		callID, interaction, phone, assistantID,
		time.Now(), na, na, na, na, na,
		na, na, na, region,
		nil, nil, nil, 0, na,
		na, na, na, na, na,
		nil, nil,
		nil, na, na, na,
		nil, na, na, nil,
		na, nil,
		false, false, false,
		na, nil,
		na, na, na, nil,
	)
	if err != nil {
		w.log.Warnw("tb_stat initial write failed", "call_id", callID, "error", err)
		metrics.StatsWriteFailures.Inc()
		return callerr.Wrap(callerr.ErrPersistence, "tb_stat_initial_write_failed", "failed to write initial call stats row", err)
	}
	return nil
}

// CallOutcome carries the fields known only once a call has ended, used to
// update the row WriteInitial created.
type CallOutcome struct {
	Service            string
	Action             string
	Sentiment          string
	EsitoChiamata      string
	Summary            string
	Motivazione        string
	PatientIntent      string
	Transcript         string
	EndedAt            time.Time
	DurationSeconds    int
	Cost               float64
	LLMTokens          int
	CallType           string
	PatientFirstName   string
	PatientSurname     string
	PatientDOB         string
	PatientGender      string
	PatientAddress     string
	BookingCode        string
	TotalBookingCost   *float64
	IsCerbaMember      bool
	TransferReason     string
	TransferTimestamp  *time.Time
}

const updateOutcomeRow = `
UPDATE tb_stat SET
	service = $1, action = $2, sentiment = $3, esito_chiamata = $4, summary = $5,
	motivazione = $6, patient_intent = $7, transcript = $8,
	ended_at = $9, duration_seconds = $10, cost = $11, llm_token = $12, call_type = $13,
	patient_first_name = $14, patient_surname = $15, patient_dob = $16, patient_gender = $17, patient_address = $18,
	booking_code = $19, total_booking_cost = $20, is_cerba_member = $21,
	transfer_reason = $22, transfer_timestamp = $23
WHERE call_id = $24
`

// CompleteCall updates the tb_stat row with the outcome of a finished call.
// Like WriteInitial, a failure here is logged and counted rather than
// propagated as fatal — the call itself has already ended by the time this
// runs, so there is nothing left to abort.
func (w *Writer) CompleteCall(ctx context.Context, callID string, outcome CallOutcome) error {
	_, err := w.db.Exec(ctx, updateOutcomeRow,
		outcome.Service, outcome.Action, outcome.Sentiment, outcome.EsitoChiamata, outcome.Summary,
		outcome.Motivazione, outcome.PatientIntent, outcome.Transcript,
		outcome.EndedAt, outcome.DurationSeconds, outcome.Cost, outcome.LLMTokens, outcome.CallType,
		outcome.PatientFirstName, outcome.PatientSurname, outcome.PatientDOB, outcome.PatientGender, outcome.PatientAddress,
		outcome.BookingCode, outcome.TotalBookingCost, outcome.IsCerbaMember,
		outcome.TransferReason, outcome.TransferTimestamp,
		callID,
	)
	if err != nil {
		w.log.Warnw("tb_stat outcome update failed", "call_id", callID, "error", err)
		metrics.StatsWriteFailures.Inc()
		return callerr.Wrap(callerr.ErrPersistence, "tb_stat_outcome_write_failed", "failed to write call outcome stats", err)
	}
	return nil
}
