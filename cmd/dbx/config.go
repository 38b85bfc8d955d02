package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

const envPrefix = "DBX"

// config is resolved from flags, DBX_* environment variables and an optional
// YAML file, in that order of precedence.
type config struct {
	Token      string `mapstructure:"oauth_token"`
	APIURL     string `mapstructure:"api_url"`
	ContentURL string `mapstructure:"content_url"`
	NotifyURL  string `mapstructure:"notify_url"`
	OAuth2URL  string `mapstructure:"oauth2_url"`
	AppKey     string `mapstructure:"app_key"`
	AppSecret  string `mapstructure:"app_secret"`
	LogLevel   string `mapstructure:"log_level"`
}

var errNoToken = errors.New("oauth_token is required (set DBX_OAUTH_TOKEN or --token)")

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log_level", "warn")
	for _, key := range []string{"oauth_token", "api_url", "content_url", "notify_url", "oauth2_url", "app_key", "app_secret"} {
		v.SetDefault(key, "")
	}
	return v
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var result error
	for key, name := range map[string]string{
		"oauth_token": "token",
		"log_level":   "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func loadConfig(v *viper.Viper, file string) (*config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// validate reports every problem at once. needToken is false for login.
func (c *config) validate(needToken bool) error {
	var result *multierror.Error
	if needToken && strings.TrimSpace(c.Token) == "" {
		result = multierror.Append(result, errNoToken)
	}
	for name, raw := range map[string]string{
		"api_url":     c.APIURL,
		"content_url": c.ContentURL,
		"notify_url":  c.NotifyURL,
		"oauth2_url":  c.OAuth2URL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s %q is not an absolute http(s) URL", name, raw))
		}
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("log_level %q is not a valid level", c.LogLevel))
	}
	return result.ErrorOrNil()
}

func (c *config) logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "dbx",
		Level: hclog.LevelFromString(c.LogLevel),
	})
}

func (c *config) clientOptions(logger hclog.Logger) []dropbox.Option {
	opts := []dropbox.Option{dropbox.WithLogger(logger)}
	for endpoint, raw := range map[dropbox.Endpoint]string{
		dropbox.EndpointAPI:     c.APIURL,
		dropbox.EndpointContent: c.ContentURL,
		dropbox.EndpointNotify:  c.NotifyURL,
		dropbox.EndpointOAuth2:  c.OAuth2URL,
	} {
		if raw != "" {
			opts = append(opts, dropbox.WithEndpointURL(endpoint, raw))
		}
	}
	return opts
}
