package oidc

import "github.com/MrEthical07/goSession/session"

// idClaims are the ID token claims mapped onto an account. oid and tid are
// the Microsoft identity platform's object and tenant identifiers; generic
// issuers omit them.
type idClaims struct {
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
}

func (c idClaims) account(subject, environment string) session.Account {
	local := c.ObjectID
	if local == "" {
		local = subject
	}
	home := local
	if c.TenantID != "" {
		home = local + "." + c.TenantID
	}

	username := c.PreferredUsername
	if username == "" {
		username = c.Email
	}
	if username == "" {
		username = subject
	}

	return session.Account{
		HomeAccountID:  home,
		Environment:    environment,
		TenantID:       c.TenantID,
		Username:       username,
		LocalAccountID: local,
		Name:           c.Name,
	}
}
