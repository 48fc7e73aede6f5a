package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/spotipro/internal/shared"
)

// CallbackKind classifies what the current location carries.
type CallbackKind int

const (
	CallbackNone CallbackKind = iota
	CallbackCode
	CallbackToken
	CallbackError
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackCode:
		return "code"
	case CallbackToken:
		return "token"
	case CallbackError:
		return "error"
	default:
		return "none"
	}
}

// CallbackResult is the parsed authorization response.
//
// Code and State are set for [CallbackCode]. AccessToken, TokenType, ExpiresIn, Scope and State are set
// for [CallbackToken]. Reason is set for [CallbackError].
type CallbackResult struct {
	Kind CallbackKind

	Code  string
	State string

	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Scope       string

	Reason string
}

// Err returns the parse or provider failure as an [shared.ErrCallbackParse] error, or nil.
func (r CallbackResult) Err() error {
	if r.Kind != CallbackError {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrCallbackParse, r.Reason)
}

// ParseCallbackURL parses a full redirect URL, e.g. one pasted into the CLI.
func ParseCallbackURL(raw string) CallbackResult {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return callbackError("invalid callback url: " + err.Error())
	}
	return ParseCallback(u.RawQuery, u.EscapedFragment())
}

// ParseCallback classifies a location's query and fragment. It is total: every input yields a result.
//
// A code in the query takes precedence over a token in the fragment.
func ParseCallback(search, hash string) CallbackResult {
	query, err := parseParams(strings.TrimPrefix(search, "?"))
	if err != nil {
		return callbackError(err.Error())
	}
	if r, ok := providerError(query); ok {
		return r
	}
	if _, ok := query["code"]; ok {
		return codeResult(query)
	}

	fragment, err := parseParams(strings.TrimPrefix(hash, "#"))
	if err != nil {
		return callbackError(err.Error())
	}
	if r, ok := providerError(fragment); ok {
		return r
	}
	if _, ok := fragment["access_token"]; ok {
		return tokenResult(fragment)
	}

	return CallbackResult{Kind: CallbackNone}
}

func codeResult(params url.Values) CallbackResult {
	code, err := single(params, "code")
	if err != nil {
		return callbackError(err.Error())
	}
	if code == "" {
		return callbackError("empty authorization code")
	}
	state, err := single(params, "state")
	if err != nil {
		return callbackError(err.Error())
	}
	return CallbackResult{Kind: CallbackCode, Code: code, State: state}
}

func tokenResult(params url.Values) CallbackResult {
	token, err := single(params, "access_token")
	if err != nil {
		return callbackError(err.Error())
	}
	if token == "" {
		return callbackError("empty access token")
	}
	state, err := single(params, "state")
	if err != nil {
		return callbackError(err.Error())
	}

	r := CallbackResult{
		Kind:        CallbackToken,
		AccessToken: token,
		State:       state,
		TokenType:   params.Get("token_type"),
		Scope:       params.Get("scope"),
		ExpiresIn:   DefaultExpiresIn,
	}
	if raw := params.Get("expires_in"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return callbackError(fmt.Sprintf("invalid expires_in %q", raw))
		}
		r.ExpiresIn = n
	}
	return r
}

func providerError(params url.Values) (CallbackResult, bool) {
	if _, ok := params["error"]; !ok {
		return CallbackResult{}, false
	}
	reason := params.Get("error")
	if reason == "" {
		reason = "unspecified provider error"
	}
	if desc := params.Get("error_description"); desc != "" {
		reason += ": " + desc
	}
	return callbackError(reason), true
}

// single returns the one value of key, rejecting conflicting duplicates.
func single(params url.Values, key string) (string, error) {
	values := params[key]
	if len(values) == 0 {
		return "", nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return "", fmt.Errorf("conflicting values for %s", key)
		}
	}
	return values[0], nil
}

func parseParams(raw string) (url.Values, error) {
	if raw == "" {
		return url.Values{}, nil
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return nil, errors.New("undecodable parameters: " + err.Error())
	}
	return params, nil
}

func callbackError(reason string) CallbackResult {
	return CallbackResult{Kind: CallbackError, Reason: reason}
}
