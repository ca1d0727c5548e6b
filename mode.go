package goSession

import (
	"fmt"
	"strings"
)

// Mode selects the authentication strategy. It is fixed for the lifetime of
// an [Authenticator].
type Mode uint8

const (
	// ModeDevelopment signs in a constant mock identity.
	ModeDevelopment Mode = iota
	// ModeProduction authenticates against an identity provider.
	ModeProduction
)

// String returns "development" or "production".
func (m Mode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode accepts "development"/"dev" and "production"/"prod",
// case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment, nil
	case "production", "prod":
		return ModeProduction, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m != ModeDevelopment && m != ModeProduction {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, uint8(m))
	}
	return []byte(m.String()), nil
}
