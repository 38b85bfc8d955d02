package dropbox

import (
	"fmt"
	"os"
	"strings"
)

const (
	envToken      = "DBX_OAUTH_TOKEN"
	envAPIURL     = "DBX_API_URL"
	envContentURL = "DBX_CONTENT_URL"
	envNotifyURL  = "DBX_NOTIFY_URL"
	envOAuth2URL  = "DBX_OAUTH2_URL"
)

// NewFromEnv builds a UserAuthClient from DBX_OAUTH_TOKEN. Endpoint base URLs
// may be redirected with DBX_API_URL, DBX_CONTENT_URL, DBX_NOTIFY_URL and
// DBX_OAUTH2_URL. Explicit options are applied after the environment.
func NewFromEnv(opts ...Option) (*UserAuthClient, error) {
	token := strings.TrimSpace(os.Getenv(envToken))
	if token == "" {
		return nil, fmt.Errorf("dropbox: %s is not set", envToken)
	}
	return NewUserAuthClient(token, append(EndpointOptionsFromEnv(), opts...)...)
}

// EndpointOptionsFromEnv returns WithEndpointURL options for every endpoint
// override present in the environment.
func EndpointOptionsFromEnv() []Option {
	var opts []Option
	for env, endpoint := range map[string]Endpoint{
		envAPIURL:     EndpointAPI,
		envContentURL: EndpointContent,
		envNotifyURL:  EndpointNotify,
		envOAuth2URL:  EndpointOAuth2,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			opts = append(opts, WithEndpointURL(endpoint, v))
		}
	}
	return opts
}
