package session

import "slices"

// User is the backend's view of the authenticated principal.
type User struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	ProviderObjectID string   `json:"providerObjectId"`
	Roles            []string `json:"roles"`
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// Clone returns a deep copy. Roles is never nil in the copy so the persisted
// form always carries a JSON array.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = make([]string, len(u.Roles))
	copy(out.Roles, u.Roles)
	return &out
}

// Account is an opaque reference to a signed-in identity at the identity
// provider. The store records which one is current but does not own it.
type Account struct {
	HomeAccountID  string `json:"homeAccountId"`
	Environment    string `json:"environment"`
	TenantID       string `json:"tenantId"`
	Username       string `json:"username"`
	LocalAccountID string `json:"localAccountId"`
	Name           string `json:"name,omitempty"`
}

// Clone returns a copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// SameAs reports whether a and other refer to the same provider identity.
func (a *Account) SameAs(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.HomeAccountID == other.HomeAccountID
}

// State is a point-in-time view of the session.
type State struct {
	User            *User
	IsAuthenticated bool
	Account         *Account
	IsLoading       bool
}

func (s State) clone() State {
	return State{
		User:            s.User.Clone(),
		IsAuthenticated: s.IsAuthenticated,
		Account:         s.Account.Clone(),
		IsLoading:       s.IsLoading,
	}
}

// PersistedState is the durable subset of [State]. IsLoading is never
// persisted.
type PersistedState struct {
	User            *User    `json:"user"`
	IsAuthenticated bool     `json:"isAuthenticated"`
	Account         *Account `json:"account"`
}

// Envelope is the persisted form of a session:
//
//	{"state":{"user":...,"isAuthenticated":...,"account":...}}
type Envelope struct {
	State PersistedState `json:"state"`
}

func envelopeOf(s State) Envelope {
	return Envelope{State: PersistedState{
		User:            s.User.Clone(),
		IsAuthenticated: s.IsAuthenticated,
		Account:         s.Account.Clone(),
	}}
}
