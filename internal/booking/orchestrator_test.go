package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piemonte-health/callbridge/internal/logging"
)

type fakeCerbaClient struct {
	centers       []HealthCenter
	slots         []Slot
	patients      []Patient
	reserveErr    error
	commitErrs    []error
	commitCalls   int
	commitResult  BookingConfirmation
}

func (f *fakeCerbaClient) GetHealthCenters(ctx context.Context, serviceUUIDs []string, gender, dob, address string) ([]HealthCenter, error) {
	return f.centers, nil
}

func (f *fakeCerbaClient) SearchSlots(ctx context.Context, centerUUID string, serviceUUIDs []string) ([]Slot, error) {
	return f.slots, nil
}

func (f *fakeCerbaClient) ReserveSlot(ctx context.Context, slot Slot) error {
	return f.reserveErr
}

func (f *fakeCerbaClient) SearchPatientByPhone(ctx context.Context, phone string) ([]Patient, error) {
	return f.patients, nil
}

func (f *fakeCerbaClient) CommitBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	idx := f.commitCalls
	f.commitCalls++
	if idx < len(f.commitErrs) && f.commitErrs[idx] != nil {
		return BookingConfirmation{}, f.commitErrs[idx]
	}
	return f.commitResult, nil
}

func TestNormalizePhoneAddsItalianCountryCode(t *testing.T) {
	assert.Equal(t, "+393331234567", NormalizePhone("3331234567"))
	assert.Equal(t, "+393331234567", NormalizePhone("+39 333 123 4567"))
	assert.Equal(t, "", NormalizePhone(""))
	assert.Equal(t, "", NormalizePhone("12"))
}

func TestNormalizeDOBPassesThroughISODate(t *testing.T) {
	assert.Equal(t, "1990-01-02", NormalizeDOB(" 1990-01-02 "))
	assert.Equal(t, "", NormalizeDOB(""))
}

func TestLookupPatientMatchesOnNormalizedDOB(t *testing.T) {
	client := &fakeCerbaClient{patients: []Patient{
		{UUID: "p1", DateOfBirth: "1990-01-02", Phone: "+393331234567"},
	}}
	o := NewOrchestrator(client, logging.Nop())

	p, err := o.LookupPatient(context.Background(), "3331234567", "1990-01-02")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "p1", p.UUID)
}

func TestLookupPatientNoMatchReturnsNil(t *testing.T) {
	client := &fakeCerbaClient{patients: []Patient{{UUID: "p1", DateOfBirth: "1985-05-05"}}}
	o := NewOrchestrator(client, logging.Nop())

	p, err := o.LookupPatient(context.Background(), "3331234567", "1990-01-02")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCommitSucceedsOnFirstAttempt(t *testing.T) {
	client := &fakeCerbaClient{commitResult: BookingConfirmation{BookingCode: "ABC"}}
	o := NewOrchestrator(client, logging.Nop())

	conf, err := o.Commit(context.Background(), BookingRequest{IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", conf.BookingCode)
	assert.Equal(t, 1, client.commitCalls)
}

func TestCommitRetriesOnceThenFails(t *testing.T) {
	client := &fakeCerbaClient{commitErrs: []error{errors.New("boom"), errors.New("boom again")}}
	o := NewOrchestrator(client, logging.Nop())

	_, err := o.Commit(context.Background(), BookingRequest{IdempotencyKey: "k2"})
	require.Error(t, err)
	assert.Equal(t, commitMaxAttempts, client.commitCalls)
}

func TestCommitRecoversOnSecondAttempt(t *testing.T) {
	client := &fakeCerbaClient{
		commitErrs:   []error{errors.New("transient")},
		commitResult: BookingConfirmation{BookingCode: "XYZ"},
	}
	o := NewOrchestrator(client, logging.Nop())

	conf, err := o.Commit(context.Background(), BookingRequest{IdempotencyKey: "k3"})
	require.NoError(t, err)
	assert.Equal(t, "XYZ", conf.BookingCode)
	assert.Equal(t, 2, client.commitCalls)
}

func TestFindCentersRequiresAllParams(t *testing.T) {
	client := &fakeCerbaClient{}
	o := NewOrchestrator(client, logging.Nop())

	_, err := o.FindCenters(context.Background(), nil, "F", "1990-01-02", "Via Roma 1")
	assert.Error(t, err)
}
