package audit

import (
	"regexp"
	"strings"
)

// Session lifecycle event types. The dispatcher rejects any other type.
const (
	TypeHydrated              = "session_hydrated"
	TypePersistedStateInvalid = "persisted_state_invalid"
	TypeLogin                 = "login"
	TypeLoginRedirect         = "login_redirect"
	TypeRedirectCompleted     = "redirect_completed"
	TypeLogout                = "logout"
	TypeSilentAcquisition     = "silent_acquisition"
	TypeInteractiveRedirect   = "interactive_redirect"
	TypeInvalidTokenFormat    = "invalid_token_format"
	TypeIdentitySync          = "identity_sync"
	TypeStorageWriteFailed    = "storage_write_failed"
)

// Metadata keys that survive sanitization.
const (
	MetaRestored = "restored"
	MetaKey      = "key"
	MetaSource   = "source"
	MetaOp       = "op"
)

var knownTypes = map[string]struct{}{
	TypeHydrated:              {},
	TypePersistedStateInvalid: {},
	TypeLogin:                 {},
	TypeLoginRedirect:         {},
	TypeRedirectCompleted:     {},
	TypeLogout:                {},
	TypeSilentAcquisition:     {},
	TypeInteractiveRedirect:   {},
	TypeInvalidTokenFormat:    {},
	TypeIdentitySync:          {},
	TypeStorageWriteFailed:    {},
}

var allowedMeta = map[string]struct{}{
	MetaRestored: {},
	MetaKey:      {},
	MetaSource:   {},
	MetaOp:       {},
}

// Redacted replaces token-shaped text in event strings.
const Redacted = "[redacted]"

// Three base64url segments starting with a JSON header ("eyJ" is "{").
var tokenPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)

// KnownType reports whether t is a session lifecycle event type.
func KnownType(t string) bool {
	_, ok := knownTypes[t]
	return ok
}

// Sanitize returns event with unknown metadata keys removed and token-shaped
// text redacted from the error and metadata values. It reports false for an
// event type outside the session lifecycle.
func Sanitize(event Event) (Event, bool) {
	if !KnownType(event.EventType) {
		return Event{}, false
	}

	event.Error = redact(event.Error)
	if len(event.Metadata) > 0 {
		meta := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			if _, ok := allowedMeta[k]; ok {
				meta[k] = redact(v)
			}
		}
		if len(meta) == 0 {
			meta = nil
		}
		event.Metadata = meta
	}
	return event, true
}

func redact(s string) string {
	if !strings.Contains(s, "eyJ") {
		return s
	}
	return tokenPattern.ReplaceAllString(s, Redacted)
}
