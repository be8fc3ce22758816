package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/piemonte-health/callbridge/internal/callerr"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/metrics"
)

// HealthCenter mirrors the Cerba API's health center record.
type HealthCenter struct {
	UUID    string
	Name    string
	Address string
	City    string
}

// Slot is one bookable appointment slot at a center. UUID is the upstream
// slot identifier the caller's pick is reserved against; it is opaque to
// the orchestrator and only round-tripped between FindSlots and
// ReserveSlot/Commit.
type Slot struct {
	UUID         string
	CenterUUID   string
	Start        time.Time
	ServiceUUIDs []string
}

// Patient is a matched existing patient record.
type Patient struct {
	UUID        string
	FirstName   string
	Surname     string
	FiscalCode  string
	DateOfBirth string
	Phone       string
	Gender      string
}

// BookingRequest describes the appointment to commit once a slot has been
// reserved and (optionally) an existing patient matched.
type BookingRequest struct {
	IdempotencyKey string
	Slot           Slot
	Patient        Patient
	ServiceUUIDs   []string
}

// BookingConfirmation is returned on a successful commit.
type BookingConfirmation struct {
	BookingCode string
	Cost        float64
}

// CerbaClient is the upstream health-center/booking API surface the
// orchestrator depends on, grounded on services/cerba_api.py's
// CerbaAPIService. Declared as an interface at the point of use so the
// orchestrator can be tested without a live API.
type CerbaClient interface {
	GetHealthCenters(ctx context.Context, serviceUUIDs []string, gender, dob, address string) ([]HealthCenter, error)
	SearchSlots(ctx context.Context, centerUUID string, serviceUUIDs []string) ([]Slot, error)
	ReserveSlot(ctx context.Context, slot Slot) error
	SearchPatientByPhone(ctx context.Context, phone string) ([]Patient, error)
	CommitBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error)
}

const (
	commitMaxAttempts = 2
	commitBackoff     = 1 * time.Second
)

// Orchestrator sequences center search, slot search, slot reservation,
// patient lookup and commit for a booking, grounded on the Cerba API client
// plus patient_lookup.py's phone/DOB normalization. It makes no sorting
// request: service groups reach it already formed.
type Orchestrator struct {
	client CerbaClient
	log    *logging.Logger
	group  singleflight.Group
}

// NewOrchestrator builds a booking Orchestrator over the given API client.
func NewOrchestrator(client CerbaClient, log *logging.Logger) *Orchestrator {
	return &Orchestrator{client: client, log: log}
}

// FindCenters looks up health centers offering the requested services for a
// patient described by gender/date-of-birth/address.
func (o *Orchestrator) FindCenters(ctx context.Context, serviceUUIDs []string, gender, dob, address string) ([]HealthCenter, error) {
	if len(serviceUUIDs) == 0 || gender == "" || dob == "" || address == "" {
		return nil, callerr.New(callerr.ErrValidation, "missing_center_search_params", "service, gender, date of birth and address are all required")
	}
	return o.client.GetHealthCenters(ctx, serviceUUIDs, gender, dob, address)
}

// FindSlots searches available appointment slots at a center for the given
// services.
func (o *Orchestrator) FindSlots(ctx context.Context, centerUUID string, serviceUUIDs []string) ([]Slot, error) {
	return o.client.SearchSlots(ctx, centerUUID, serviceUUIDs)
}

// ReserveSlot holds a slot pending patient confirmation.
func (o *Orchestrator) ReserveSlot(ctx context.Context, slot Slot) error {
	return o.client.ReserveSlot(ctx, slot)
}

// LookupPatient finds an existing patient by phone and date of birth,
// normalizing both the way patient_lookup.py does: phone to E.164 Italian
// format, DOB to YYYY-MM-DD when already in that shape.
func (o *Orchestrator) LookupPatient(ctx context.Context, phone, dob string) (*Patient, error) {
	normalizedPhone := NormalizePhone(phone)
	normalizedDOB := NormalizeDOB(dob)
	if normalizedPhone == "" || normalizedDOB == "" {
		return nil, nil
	}

	patients, err := o.client.SearchPatientByPhone(ctx, normalizedPhone)
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if NormalizeDOB(p.DateOfBirth) == normalizedDOB {
			return &p, nil
		}
	}
	return nil, nil
}

// Commit books the appointment, retrying once on failure after a fixed
// backoff. Concurrent commits sharing the same idempotency key (e.g. a
// duplicated tool call from the agent) collapse onto a single attempt via
// singleflight, giving the orchestrator at-most-once commit semantics.
func (o *Orchestrator) Commit(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	v, err, _ := o.group.Do(req.IdempotencyKey, func() (interface{}, error) {
		return o.commitWithRetry(ctx, req)
	})
	if err != nil {
		return BookingConfirmation{}, err
	}
	return v.(BookingConfirmation), nil
}

func (o *Orchestrator) commitWithRetry(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	var lastErr error
	for attempt := 1; attempt <= commitMaxAttempts; attempt++ {
		conf, err := o.client.CommitBooking(ctx, req)
		if err == nil {
			metrics.BookingCommitAttempts.WithLabelValues(fmt.Sprintf("%d", attempt), "ok").Inc()
			return conf, nil
		}
		lastErr = err
		metrics.BookingCommitAttempts.WithLabelValues(fmt.Sprintf("%d", attempt), "error").Inc()
		o.log.Warnw("booking commit attempt failed", "attempt", attempt, "idempotency_key", req.IdempotencyKey, "error", err)

		if attempt < commitMaxAttempts {
			select {
			case <-time.After(commitBackoff):
			case <-ctx.Done():
				return BookingConfirmation{}, ctx.Err()
			}
		}
	}
	return BookingConfirmation{}, callerr.Wrap(callerr.ErrUpstreamUnavailable, "booking_commit_failed", "booking commit failed after retrying", lastErr)
}

var nonDigits = regexp.MustCompile(`[^\d]`)

// NormalizePhone converts a raw phone number to +39-prefixed E.164, the
// way normalize_phone does for Italian numbers.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if digits == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(digits, "39"):
		return "+" + digits
	case strings.HasPrefix(digits, "3"):
		return "+39" + digits
	case len(digits) >= 10:
		return "+39" + digits
	default:
		return ""
	}
}

// NormalizeDOB trims the date of birth, matching normalize_dob's
// conservative behavior of passing any shape through rather than
// rejecting non-ISO dates.
func NormalizeDOB(raw string) string {
	return strings.TrimSpace(raw)
}
