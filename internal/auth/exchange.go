package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/spotipro/internal/shared"
	"golang.org/x/oauth2"
)

// ExchangeError describes a failed authorization code exchange.
type ExchangeError struct {
	Code        string
	Description string
	Status      int
	Err         error
}

func (e *ExchangeError) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	return fmt.Sprintf("%v: %s", shared.ErrTokenExchange, msg)
}

func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrTokenExchange}
	}
	return []error{shared.ErrTokenExchange, e.Err}
}

// Provider talks to the Spotify accounts service as a public client.
type Provider struct {
	config *oauth2.Config
	client *http.Client
}

// NewProvider builds a [Provider] from the spotify config section. A nil client uses [http.DefaultClient].
func NewProvider(c shared.SpotifyConfig, client *http.Client) *Provider {
	return &Provider{
		config: &oauth2.Config{
			ClientID:    c.ClientID,
			RedirectURL: c.RedirectURI,
			Scopes:      normalizeScopes(c.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
	}
}

// AuthorizationURL returns the authorization redirect for one attempt.
func (p *Provider) AuthorizationURL(state, challenge string) string {
	return BuildAuthorizationURL(p.config.Endpoint.AuthURL, p.config.ClientID, p.config.RedirectURL, p.config.Scopes, state, challenge)
}

// Exchange trades an authorization code and its verifier for an access token in a single POST.
//
// The returned token has no ObtainedAt; the caller stamps it.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}

	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, exchangeError(err)
	}

	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = extraSeconds(tok.Extra("expires_in"))
	}
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	scope, _ := tok.Extra("scope").(string)

	return &Token{Value: tok.AccessToken, TokenType: tokenType, ExpiresIn: expiresIn, Scope: scope}, nil
}

func exchangeError(err error) *ExchangeError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		e := &ExchangeError{Code: re.ErrorCode, Description: re.ErrorDescription, Err: err}
		if re.Response != nil {
			e.Status = re.Response.StatusCode
		}
		if e.Code == "" {
			e.Code = "http_error"
		}
		return e
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return &ExchangeError{Code: "missing_access_token", Status: http.StatusOK, Err: err}
	}
	return &ExchangeError{Code: "transport_error", Err: err}
}

func extraSeconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
