// Package cerba implements the HTTP client for Cerba Healthcare's ambulatory
// booking API, grounded on original_source/services/cerba_api.py's
// CerbaAPIService: one base URL, a bearer token attached to every request,
// and the same three read endpoints (health-center search, slot availability,
// patient search by phone) plus the slot reservation/commit calls confirm_details_and_create_
// booking delegates to a sibling module the retrieval pack did not carry
// over. The teacher's pkg/signalwire/client.go supplies the
// http.Client-plus-error-wrapping shape this is built from.
package cerba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/piemonte-health/callbridge/internal/booking"
	"github.com/piemonte-health/callbridge/internal/callerr"
)

// Client calls the Cerba ambulatory API over HTTP. It implements
// booking.CerbaClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	validate   *validator.Validate
}

// New builds a Client. token is sent as a static bearer credential; unlike
// the source's auth_service, this does not refresh or cache a short-lived
// OAuth token because original_source did not retain services/auth.py, so
// the exchange/refresh flow has nothing to ground a reimplementation on.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		validate: validator.New(),
	}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("cerba API request failed with status %d: %s", e.StatusCode, e.Body)
}

// doGet mirrors _make_request: attaches the bearer token, treats 401 as an
// auth failure and any other 4xx/5xx as an API error, and decodes the JSON
// body into out.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_request_build_failed", "could not build Cerba API request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_request_failed", "Cerba API request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_auth_failed", "Cerba API authentication failed", &apiError{resp.StatusCode, string(body)})
	}
	if resp.StatusCode >= 400 {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_api_error", "Cerba API returned an error", &apiError{resp.StatusCode, string(body)})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_decode_failed", "could not decode Cerba API response", err)
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, endpoint string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return callerr.Wrap(callerr.ErrValidation, "cerba_encode_failed", "could not encode Cerba API request", err)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(encoded))
	if err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_request_build_failed", "could not build Cerba API request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_request_failed", "Cerba API request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_auth_failed", "Cerba API authentication failed", &apiError{resp.StatusCode, string(body)})
	}
	if resp.StatusCode >= 400 {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_api_error", "Cerba API returned an error", &apiError{resp.StatusCode, string(body)})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return callerr.Wrap(callerr.ErrUpstreamUnavailable, "cerba_decode_failed", "could not decode Cerba API response", err)
	}
	return nil
}

type healthCenterSearchRequest struct {
	HealthServices string `validate:"required"`
	Gender         string `validate:"required,oneof=m f"`
	DateOfBirth    string `validate:"required,len=8,numeric"`
	Address        string `validate:"required"`
}

type healthCenterResponse struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	StreetNumber string `json:"street_number"`
	City         string `json:"city"`
}

// GetHealthCenters mirrors get_health_centers: validates the required
// parameter set before calling out, then concatenates address/street
// number/city into the single display address field booking.HealthCenter
// carries.
func (c *Client) GetHealthCenters(ctx context.Context, serviceUUIDs []string, gender, dob, address string) ([]booking.HealthCenter, error) {
	req := healthCenterSearchRequest{
		HealthServices: strings.Join(serviceUUIDs, ","),
		Gender:         gender,
		DateOfBirth:    dob,
		Address:        address,
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, callerr.Wrap(callerr.ErrValidation, "invalid_center_search_request", "health center search parameters failed validation", err)
	}

	params := url.Values{
		"health_services":              {req.HealthServices},
		"gender":                       {req.Gender},
		"date_of_birth":                {req.DateOfBirth},
		"address":                      {req.Address},
		"health_services_availability": {"true"},
	}

	var raw []healthCenterResponse
	if err := c.doGet(ctx, "amb/health-center", params, &raw); err != nil {
		return nil, err
	}

	centers := make([]booking.HealthCenter, 0, len(raw))
	for _, r := range raw {
		centers = append(centers, booking.HealthCenter{
			UUID:    r.UUID,
			Name:    r.Name,
			Address: strings.TrimSpace(fmt.Sprintf("%s %s, %s", r.Address, r.StreetNumber, r.City)),
			City:    r.City,
		})
	}
	return centers, nil
}

type slotResponse struct {
	UUID         string   `json:"uuid"`
	CenterUUID   string   `json:"center_uuid"`
	Start        string   `json:"start"`
	ServiceUUIDs []string `json:"service_uuids"`
}

// SearchSlots calls the ambulatory availability endpoint for one center.
func (c *Client) SearchSlots(ctx context.Context, centerUUID string, serviceUUIDs []string) ([]booking.Slot, error) {
	params := url.Values{
		"health_center":   {centerUUID},
		"health_services": {strings.Join(serviceUUIDs, ",")},
	}

	var raw []slotResponse
	if err := c.doGet(ctx, "amb/availability", params, &raw); err != nil {
		return nil, err
	}

	slots := make([]booking.Slot, 0, len(raw))
	for _, r := range raw {
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			continue
		}
		slots = append(slots, booking.Slot{UUID: r.UUID, CenterUUID: r.CenterUUID, Start: start, ServiceUUIDs: r.ServiceUUIDs})
	}
	return slots, nil
}

// ReserveSlot calls the slot reservation endpoint ahead of final commit, the
// step patient_detail_handlers.py's confirm_details_and_create_booking
// expects to have already happened via select_slot_and_book() before it
// will accept a booking.
func (c *Client) ReserveSlot(ctx context.Context, slot booking.Slot) error {
	payload := map[string]any{
		"uuid":            slot.UUID,
		"health_center":   slot.CenterUUID,
		"start":           slot.Start.Format(time.RFC3339),
		"health_services": slot.ServiceUUIDs,
	}
	return c.doPost(ctx, "amb/reserve", payload, nil)
}

type patientResponse struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	FiscalCode  string `json:"fiscal_code"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
}

// SearchPatientByPhone mirrors search_patient_by_phone: an empty phone
// short-circuits to an empty result without calling out, and a 404-shaped
// error (no patient found) is swallowed rather than surfaced.
func (c *Client) SearchPatientByPhone(ctx context.Context, phone string) ([]booking.Patient, error) {
	if phone == "" {
		return nil, nil
	}

	var raw []patientResponse
	err := c.doGet(ctx, "search/patient", url.Values{"phone": {phone}}, &raw)
	if err != nil {
		if ae, ok := asAPIError(err); ok && ae.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	patients := make([]booking.Patient, 0, len(raw))
	for _, r := range raw {
		patients = append(patients, booking.Patient{
			UUID:        r.UUID,
			FirstName:   r.Name,
			Surname:     r.Surname,
			FiscalCode:  r.FiscalCode,
			DateOfBirth: r.DateOfBirth,
			Phone:       r.Phone,
		})
	}
	return patients, nil
}

// asAPIError recovers the *apiError a callerr.Error wraps in its Err field.
// callerr.Error.Unwrap returns the sentinel Kind rather than Err, so errors.As
// cannot walk the chain on its own.
func asAPIError(err error) (*apiError, bool) {
	ce, ok := err.(*callerr.Error)
	if !ok {
		return nil, false
	}
	ae, ok := ce.Err.(*apiError)
	return ae, ok
}

type bookingResponse struct {
	BookingCode string  `json:"booking_code"`
	Cost        float64 `json:"cost"`
}

// CommitBooking performs the final booking creation call. Retry-on-failure
// and idempotency-key collapsing both live one layer up in
// booking.Orchestrator; this method is a single best-effort attempt. A
// patient already matched in the upstream system (req.Patient.UUID set)
// is sent by reference only; a new patient carries its full uppercased
// detail set, per the Patient payload invariant.
func (c *Client) CommitBooking(ctx context.Context, req booking.BookingRequest) (booking.BookingConfirmation, error) {
	var patient map[string]any
	if req.Patient.UUID != "" {
		patient = map[string]any{"uuid": req.Patient.UUID}
	} else {
		patient = map[string]any{
			"name":          req.Patient.FirstName,
			"surname":       req.Patient.Surname,
			"gender":        req.Patient.Gender,
			"fiscal_code":   req.Patient.FiscalCode,
			"date_of_birth": req.Patient.DateOfBirth,
			"phone":         req.Patient.Phone,
		}
	}

	payload := map[string]any{
		"idempotency_key": req.IdempotencyKey,
		"health_center":   req.Slot.CenterUUID,
		"start":           req.Slot.Start.Format(time.RFC3339),
		"health_services": req.ServiceUUIDs,
		"patient":         patient,
	}

	var raw bookingResponse
	if err := c.doPost(ctx, "amb/booking", payload, &raw); err != nil {
		return booking.BookingConfirmation{}, err
	}
	return booking.BookingConfirmation{BookingCode: raw.BookingCode, Cost: raw.Cost}, nil
}

// GetHealthServices loads the full ambulatory service catalog, optionally
// scoped to one center, mirroring get_health_services.
func (c *Client) GetHealthServices(ctx context.Context, healthCenter string) ([]CatalogService, error) {
	params := url.Values{}
	if healthCenter != "" {
		params.Set("health_center", healthCenter)
	}
	var raw []catalogServiceResponse
	if err := c.doGet(ctx, "amb/health-service", params, &raw); err != nil {
		return nil, err
	}
	services := make([]CatalogService, 0, len(raw))
	for _, r := range raw {
		services = append(services, CatalogService{UUID: r.UUID, Name: r.Name, Code: r.Code, Synonyms: r.Synonyms})
	}
	return services, nil
}

type catalogServiceResponse struct {
	UUID     string   `json:"uuid"`
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Synonyms []string `json:"synonyms"`
}

// CatalogService is one entry of the ambulatory service catalog, the Go
// shape of models.requests.HealthService.
type CatalogService struct {
	UUID     string
	Name     string
	Code     string
	Synonyms []string
}
