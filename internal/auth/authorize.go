package auth

import (
	"slices"
	"strings"

	"golang.org/x/oauth2"
)

// BuildAuthorizationURL returns the provider authorization URL for a PKCE code flow.
//
// Scopes are trimmed, deduplicated and sorted so identical inputs always produce identical URLs.
func BuildAuthorizationURL(authURL, clientID, redirectURI string, scopes []string, state, challenge string) string {
	conf := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      normalizeScopes(scopes),
		Endpoint:    oauth2.Endpoint{AuthURL: authURL},
	}
	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		for _, f := range strings.Fields(s) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
