package bridge

import (
	"context"

	"github.com/google/uuid"

	"github.com/piemonte-health/callbridge/internal/wsconn"
)

// DefaultAgentDialer opens the outbound voice-agent connection the way
// PipecatConnection.create_connection builds it: a new call id per call,
// URL query parameters for the caller phone, interaction id, stream id and
// business status.
type DefaultAgentDialer struct {
	ServerURL string
}

// Dial opens a fresh connection to the configured agent server, returning
// the connection and the call id generated for this attempt.
func (d *DefaultAgentDialer) Dial(ctx context.Context, businessStatus, callerPhone, interactionID, streamSID string) (*wsconn.Conn, string, error) {
	callID := uuid.New().String()
	conn, err := wsconn.Dial(ctx, d.ServerURL, map[string]string{
		"session_id":      callID,
		"caller_phone":    callerPhone,
		"interaction_id":  interactionID,
		"stream_sid":      streamSID,
		"business_status": businessStatus,
	})
	if err != nil {
		return nil, "", err
	}
	return conn, callID, nil
}
