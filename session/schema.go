package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ErrSchemaViolation is returned when bytes parse but do not satisfy the
// envelope, user or account schema.
var ErrSchemaViolation = errors.New("schema violation")

// ErrMalformed is returned when bytes are not parseable JSON of the expected
// kind.
var ErrMalformed = errors.New("malformed document")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Pointer fields distinguish a missing key from a zero value; every key is
// required to be present.
type wireUser struct {
	ID               *string  `json:"id" validate:"required,min=1"`
	Email            *string  `json:"email" validate:"required,email"`
	Name             *string  `json:"name" validate:"required"`
	ProviderObjectID *string  `json:"providerObjectId" validate:"required"`
	Roles            []string `json:"roles" validate:"required,dive,min=1"`
}

type wireAccount struct {
	HomeAccountID  *string `json:"homeAccountId" validate:"required,min=1"`
	Environment    *string `json:"environment"`
	TenantID       *string `json:"tenantId"`
	Username       *string `json:"username" validate:"required"`
	LocalAccountID *string `json:"localAccountId"`
	Name           *string `json:"name"`
}

type wireState struct {
	User            json.RawMessage `json:"user"`
	IsAuthenticated *bool           `json:"isAuthenticated" validate:"required"`
	Account         json.RawMessage `json:"account"`
}

type wireEnvelope struct {
	State *wireState `json:"state" validate:"required"`
}

// DecodeEnvelope parses data and validates it against the envelope schema.
// A single invalid field rejects the whole envelope. An envelope whose
// isAuthenticated flag disagrees with the presence of a user is rejected too.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if err := checkUTF8(data, "envelope"); err != nil {
		return Envelope{}, err
	}
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrSchemaViolation, err)
	}

	user, err := decodeNullable(wire.State.User, "user", DecodeUser)
	if err != nil {
		return Envelope{}, err
	}
	account, err := decodeNullable(wire.State.Account, "account", DecodeAccount)
	if err != nil {
		return Envelope{}, err
	}

	isAuthenticated := *wire.State.IsAuthenticated
	if isAuthenticated != (user != nil) {
		return Envelope{}, fmt.Errorf("%w: isAuthenticated=%t with user present=%t", ErrSchemaViolation, isAuthenticated, user != nil)
	}

	return Envelope{State: PersistedState{
		User:            user,
		IsAuthenticated: isAuthenticated,
		Account:         account,
	}}, nil
}

// DecodeUser parses and validates a user document. It is used for both
// persisted state and backend profile responses.
func DecodeUser(data []byte) (*User, error) {
	if err := checkUTF8(data, "user"); err != nil {
		return nil, err
	}
	var wire wireUser
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrMalformed, err)
	}
	if err := validate.Struct(wire); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrSchemaViolation, err)
	}
	return &User{
		ID:               *wire.ID,
		Email:            *wire.Email,
		Name:             *wire.Name,
		ProviderObjectID: *wire.ProviderObjectID,
		Roles:            append([]string{}, wire.Roles...),
	}, nil
}

// DecodeAccount parses and validates a provider account reference.
func DecodeAccount(data []byte) (*Account, error) {
	if err := checkUTF8(data, "account"); err != nil {
		return nil, err
	}
	var wire wireAccount
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: account: %v", ErrMalformed, err)
	}
	if err := validate.Struct(wire); err != nil {
		return nil, fmt.Errorf("%w: account: %v", ErrSchemaViolation, err)
	}
	return &Account{
		HomeAccountID:  *wire.HomeAccountID,
		Environment:    deref(wire.Environment),
		TenantID:       deref(wire.TenantID),
		Username:       *wire.Username,
		LocalAccountID: deref(wire.LocalAccountID),
		Name:           deref(wire.Name),
	}, nil
}

// ValidateUser checks an in-memory user against the same rules as
// [DecodeUser].
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("%w: user is nil", ErrSchemaViolation)
	}
	for _, f := range append([]string{u.ID, u.Email, u.Name, u.ProviderObjectID}, u.Roles...) {
		if !utf8.ValidString(f) {
			return fmt.Errorf("%w: user: invalid UTF-8", ErrMalformed)
		}
	}
	data, err := json.Marshal(u.Clone())
	if err != nil {
		return fmt.Errorf("%w: user: %v", ErrMalformed, err)
	}
	_, err = DecodeUser(data)
	return err
}

// encoding/json replaces invalid UTF-8 with U+FFFD instead of failing.
func checkUTF8(data []byte, what string) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: %s: invalid UTF-8", ErrMalformed, what)
	}
	return nil
}

func decodeNullable[T any](raw json.RawMessage, field string, decode func([]byte) (*T, error)) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: state.%s missing", ErrSchemaViolation, field)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	return decode(raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
