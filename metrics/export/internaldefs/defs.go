package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

// Series is one labeled sample of a counter family.
type Series struct {
	ID    goSession.MetricID
	Value string
}

// CounterFamily groups counters that differ only in one label. A family
// with an empty Label has exactly one series.
type CounterFamily struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// HistogramDef names one histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterFamilies lists every exported counter family in a stable order.
var CounterFamilies = []CounterFamily{
	{
		Name:  "gosession_hydrate_total",
		Help:  "Startups by whether a persisted session was restored.",
		Label: "result",
		Series: []Series{
			{ID: goSession.MetricHydrateRestored, Value: "restored"},
			{ID: goSession.MetricHydrateEmpty, Value: "empty"},
		},
	},
	{
		Name:   "gosession_persisted_state_invalid_total",
		Help:   "Persisted session envelopes purged after failing validation.",
		Series: []Series{{ID: goSession.MetricPersistedStateInvalid}},
	},
	{
		Name:  "gosession_session_operations_total",
		Help:  "Login and logout operations.",
		Label: "op",
		Series: []Series{
			{ID: goSession.MetricLogin, Value: "login"},
			{ID: goSession.MetricLogout, Value: "logout"},
		},
	},
	{
		Name:  "gosession_token_acquisition_total",
		Help:  "Access token requests by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: goSession.MetricSilentAcquisitionSuccess, Value: "silent_success"},
			{ID: goSession.MetricSilentAcquisitionFailure, Value: "silent_failure"},
			{ID: goSession.MetricInteractiveRedirect, Value: "interactive_redirect"},
			{ID: goSession.MetricInteractiveFailure, Value: "interactive_failure"},
			{ID: goSession.MetricNoAccount, Value: "no_account"},
			{ID: goSession.MetricInvalidTokenFormat, Value: "invalid_format"},
		},
	},
	{
		Name:  "gosession_identity_sync_total",
		Help:  "Backend profile syncs by result.",
		Label: "result",
		Series: []Series{
			{ID: goSession.MetricIdentitySyncSuccess, Value: "success"},
			{ID: goSession.MetricIdentitySyncFailure, Value: "failure"},
		},
	},
	{
		Name:  "gosession_redirect_total",
		Help:  "Provider redirect completions by result.",
		Label: "result",
		Series: []Series{
			{ID: goSession.MetricRedirectCompleted, Value: "completed"},
			{ID: goSession.MetricRedirectFailure, Value: "failed"},
		},
	},
	{
		Name:   "gosession_storage_write_failure_total",
		Help:   "Session mutations whose write-through failed.",
		Series: []Series{{ID: goSession.MetricStorageWriteFailure}},
	},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricTokenAcquireLatency, Name: "gosession_token_acquire_latency_seconds", Help: "Token acquisition latency histogram."},
}

// Audit counters read from the authenticator rather than the snapshot.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

	AuditRejectedName = "gosession_audit_rejected_total"
	AuditRejectedHelp = "Audit events discarded for an unknown event type."
)

// AuditRejecter is implemented by both authenticators.
type AuditRejecter interface {
	AuditRejected() uint64
}

// SessionSource exposes the live session. Both authenticators implement it;
// exporters publish StateGauges only when their source does.
type SessionSource interface {
	Session() session.State
	Mode() goSession.Mode
}

// StateGauge is a 0/1 gauge derived from the current session, labeled by
// mode.
type StateGauge struct {
	Name  string
	Help  string
	Value func(session.State) bool
}

// ModeLabel is the label carried by every StateGauge.
const ModeLabel = "mode"

// StateGauges lists the session gauges in a stable order.
var StateGauges = []StateGauge{
	{
		Name:  "gosession_authenticated",
		Help:  "1 when a backend user is signed in.",
		Value: func(st session.State) bool { return st.IsAuthenticated },
	},
	{
		Name:  "gosession_loading",
		Help:  "1 while an interactive login is in progress.",
		Value: func(st session.State) bool { return st.IsLoading },
	},
	{
		Name:  "gosession_account_present",
		Help:  "1 when a provider account is recorded.",
		Value: func(st session.State) bool { return st.Account != nil },
	},
}

// BoolValue maps a gauge condition to its sample.
func BoolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// HistogramBounds are the upper bounds of the eight buckets, in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in metric names.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
