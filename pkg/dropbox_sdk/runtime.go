package dropbox_sdk

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Ratio1/dropbox_sdk_go/internal/devseed"
	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
	"github.com/Ratio1/dropbox_sdk_go/pkg/sandbox"
)

const (
	envMode        = "DBX_RUNTIME_MODE"
	envToken       = "DBX_OAUTH_TOKEN"
	envSandboxSeed = "DBX_SANDBOX_SEED"
	envSandboxFail = "DBX_SANDBOX_FAIL"
	modeAuto       = "auto"
	modeHTTP       = "http"
	modeSandbox    = "sandbox"

	sandboxToken = "sandbox-token"
)

// Runtime bundles the clients resolved from the environment. In sandbox mode
// it also owns the in-process server; Close stops it.
type Runtime struct {
	Mode   string
	User   *dropbox.UserAuthClient
	NoAuth *dropbox.NoAuthClient

	sandbox *sandbox.Running
}

// Close releases the sandbox server, if any.
func (r *Runtime) Close() error {
	if r == nil || r.sandbox == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.sandbox.Shutdown(ctx)
}

// Option configures NewFromEnv.
type Option func(*options)

type options struct {
	logger     hclog.Logger
	clientOpts []dropbox.Option
}

// WithLogger is passed to the clients and the sandbox.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClientOptions appends transport options for the clients.
func WithClientOptions(opts ...dropbox.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// NewFromEnv resolves DBX_RUNTIME_MODE:
//
//   - "http" talks to Dropbox (or the DBX_*_URL overrides) with DBX_OAUTH_TOKEN.
//   - "sandbox" starts a local sandbox, seeded from DBX_SANDBOX_SEED, with
//     faults from DBX_SANDBOX_FAIL.
//   - "auto" or unset picks http when a token is present and sandbox otherwise.
func NewFromEnv(opts ...Option) (*Runtime, error) {
	o := &options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(o)
	}
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	token := strings.TrimSpace(os.Getenv(envToken))

	switch mode {
	case "", modeAuto:
		if token != "" {
			return newHTTPRuntime(token, o)
		}
		return newSandboxRuntime(o)
	case modeHTTP:
		if token == "" {
			return nil, fmt.Errorf("dropbox_sdk: HTTP mode requires %s", envToken)
		}
		return newHTTPRuntime(token, o)
	case modeSandbox:
		return newSandboxRuntime(o)
	default:
		return nil, fmt.Errorf("dropbox_sdk: unsupported %s value %q", envMode, mode)
	}
}

func newHTTPRuntime(token string, o *options) (*Runtime, error) {
	clientOpts := append([]dropbox.Option{dropbox.WithLogger(o.logger)}, dropbox.EndpointOptionsFromEnv()...)
	transport := dropbox.NewTransport(append(clientOpts, o.clientOpts...)...)
	user, err := dropbox.NewUserAuthClientWithTransport(token, transport)
	if err != nil {
		return nil, fmt.Errorf("dropbox_sdk: init user client: %w", err)
	}
	return &Runtime{
		Mode:   modeHTTP,
		User:   user,
		NoAuth: dropbox.NewNoAuthClientWithTransport(transport),
	}, nil
}

func newSandboxRuntime(o *options) (*Runtime, error) {
	store := sandbox.NewStore(nil)
	if path := strings.TrimSpace(os.Getenv(envSandboxSeed)); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return nil, fmt.Errorf("dropbox_sdk: load sandbox seed: %w", err)
		}
		if err := store.Seed(entries); err != nil {
			return nil, fmt.Errorf("dropbox_sdk: apply sandbox seed: %w", err)
		}
	}
	failure, err := sandbox.ParseFailureConfig(os.Getenv(envSandboxFail))
	if err != nil {
		return nil, fmt.Errorf("dropbox_sdk: parse %s: %w", envSandboxFail, err)
	}

	srv := sandbox.New(
		sandbox.WithStore(store),
		sandbox.WithLogger(o.logger),
		sandbox.WithToken(sandboxToken),
		sandbox.WithFailure(failure),
	)
	running, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("dropbox_sdk: start sandbox: %w", err)
	}

	clientOpts := append([]dropbox.Option{dropbox.WithLogger(o.logger)}, running.EndpointOptions()...)
	transport := dropbox.NewTransport(append(clientOpts, o.clientOpts...)...)
	user, err := dropbox.NewUserAuthClientWithTransport(sandboxToken, transport)
	if err != nil {
		running.Close()
		return nil, fmt.Errorf("dropbox_sdk: init user client: %w", err)
	}
	return &Runtime{
		Mode:    modeSandbox,
		User:    user,
		NoAuth:  dropbox.NewNoAuthClientWithTransport(transport),
		sandbox: running,
	}, nil
}
