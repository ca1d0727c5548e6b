package oidc

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
)

// DefaultCacheKey is where accounts are persisted when Config.Cache is set.
const DefaultCacheKey = "provider-accounts"

type persistedAccounts struct {
	Active   string             `json:"active"`
	Accounts []persistedAccount `json:"accounts"`
}

type persistedAccount struct {
	Account json.RawMessage `json:"account"`
	Token   *oauth2.Token   `json:"token"`
	IDToken string          `json:"idToken"`
}

// loadCache merges the persisted accounts into memory once. Entries already
// in memory win, so a login completed before the first load is kept.
func (p *Provider) loadCache(ctx context.Context) {
	if p.cache == nil {
		return
	}
	p.loadOnce.Do(func() {
		data, err := p.cache.Get(ctx, p.cacheKey)
		if errors.Is(err, storage.ErrNotFound) {
			return
		}
		if err != nil {
			p.logger.ErrorContext(ctx, "provider cache read failed", "key", p.cacheKey, "error", err)
			return
		}

		var stored persistedAccounts
		if err := json.Unmarshal(data, &stored); err != nil {
			p.purgeCache(ctx, err)
			return
		}

		restored := make(map[string]*cachedAccount, len(stored.Accounts))
		for _, a := range stored.Accounts {
			account, err := session.DecodeAccount(a.Account)
			if err != nil {
				p.purgeCache(ctx, err)
				return
			}
			if a.Token == nil || (a.Token.AccessToken == "" && a.Token.RefreshToken == "") {
				continue
			}
			restored[account.HomeAccountID] = &cachedAccount{
				account: *account,
				token:   a.Token,
				idToken: a.IDToken,
			}
		}

		p.mu.Lock()
		for id, c := range restored {
			if _, ok := p.accounts[id]; !ok {
				p.accounts[id] = c
			}
		}
		if p.active == "" {
			if _, ok := p.accounts[stored.Active]; ok {
				p.active = stored.Active
			}
		}
		p.mu.Unlock()

		p.logger.InfoContext(ctx, "provider accounts restored", "count", len(restored))
	})
}

// saveCache writes the in-memory accounts through. Failures are logged; the
// in-memory cache stays authoritative for this process.
func (p *Provider) saveCache(ctx context.Context) {
	if p.cache == nil {
		return
	}

	p.mu.Lock()
	stored := persistedAccounts{
		Active:   p.active,
		Accounts: make([]persistedAccount, 0, len(p.accounts)),
	}
	for _, c := range p.accounts {
		raw, err := json.Marshal(c.account)
		if err != nil {
			continue
		}
		tok := *c.token
		stored.Accounts = append(stored.Accounts, persistedAccount{Account: raw, Token: &tok, IDToken: c.idToken})
	}
	p.mu.Unlock()

	if len(stored.Accounts) == 0 {
		if err := p.cache.Delete(ctx, p.cacheKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.ErrorContext(ctx, "provider cache clear failed", "key", p.cacheKey, "error", err)
		}
		return
	}

	data, err := json.Marshal(stored)
	if err != nil {
		p.logger.ErrorContext(ctx, "provider cache encode failed", "error", err)
		return
	}
	if err := p.cache.Set(ctx, p.cacheKey, data); err != nil {
		p.logger.ErrorContext(ctx, "provider cache write failed", "key", p.cacheKey, "error", err)
	}
}

func (p *Provider) purgeCache(ctx context.Context, cause error) {
	p.logger.WarnContext(ctx, "invalid provider cache purged", "key", p.cacheKey, "error", cause)
	if err := p.cache.Delete(ctx, p.cacheKey); err != nil {
		p.logger.ErrorContext(ctx, "provider cache clear failed", "key", p.cacheKey, "error", err)
	}
}
