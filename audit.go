package goSession

import (
	"io"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one session lifecycle record. It never carries a token.
type AuditEvent = audit.Event

// AuditSink receives emitted audit events.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// Audit event types. Sinks never see any other type.
const (
	AuditEventHydrated              = audit.TypeHydrated
	AuditEventPersistedStateInvalid = audit.TypePersistedStateInvalid
	AuditEventLogin                 = audit.TypeLogin
	AuditEventLoginRedirect         = audit.TypeLoginRedirect
	AuditEventRedirectCompleted     = audit.TypeRedirectCompleted
	AuditEventLogout                = audit.TypeLogout
	AuditEventSilentAcquisition     = audit.TypeSilentAcquisition
	AuditEventInteractiveRedirect   = audit.TypeInteractiveRedirect
	AuditEventInvalidTokenFormat    = audit.TypeInvalidTokenFormat
	AuditEventIdentitySync          = audit.TypeIdentitySync
	AuditEventStorageWriteFailed    = audit.TypeStorageWriteFailed
)
