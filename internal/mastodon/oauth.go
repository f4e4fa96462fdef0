package mastodon

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// OutOfBandRedirect makes the instance display the authorization code instead
// of redirecting.
const OutOfBandRedirect = "urn:ietf:wg:oauth:2.0:oob"

// OAuthConfig returns the authorization code flow configuration of a
// registered application.
func OAuthConfig(creds ClientCredentials, scopes []string) *oauth2.Config {
	base := strings.TrimRight(creds.APIBaseURL, "/")
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: OutOfBandRedirect,
		Scopes:      scopes,
	}
}

// AuthorizationURL returns the page where the user grants access and obtains
// a code.
func AuthorizationURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("")
}

// LogIn exchanges an authorization code for user credentials.
func LogIn(ctx context.Context, conf *oauth2.Config, code string) (UserCredentials, error) {
	tok, err := conf.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return UserCredentials{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	base := strings.TrimSuffix(conf.Endpoint.TokenURL, "/oauth/token")
	return UserCredentials{
		AccessToken: tok.AccessToken,
		APIBaseURL:  base,
	}, nil
}
