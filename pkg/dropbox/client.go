package dropbox

import (
	"context"
	"strings"
	"sync"
)

// Client dispatches fully described requests. The concrete clients in this
// package differ only in the authorization they attach.
type Client interface {
	Request(ctx context.Context, req *Request) (*RawResult, error)
}

// UserAuth is implemented by clients authorized with a user token.
type UserAuth interface {
	Client
	userAuth()
}

// TeamAuth is implemented by clients authorized with a team token.
type TeamAuth interface {
	Client
	teamAuth()
}

// NoAuth is implemented by clients that send no credentials.
type NoAuth interface {
	Client
	noAuth()
}

// NoAuthClient calls routes that take no bearer token, such as the OAuth2
// token endpoint and long-poll routes.
type NoAuthClient struct {
	transport *Transport
}

// NewNoAuthClient constructs an unauthenticated client.
func NewNoAuthClient(opts ...Option) *NoAuthClient {
	return &NoAuthClient{transport: NewTransport(opts...)}
}

// NewNoAuthClientWithTransport shares an existing Transport.
func NewNoAuthClientWithTransport(t *Transport) *NoAuthClient {
	return &NoAuthClient{transport: t}
}

// Request implements Client.
func (c *NoAuthClient) Request(ctx context.Context, req *Request) (*RawResult, error) {
	return c.transport.Dispatch(ctx, req, Auth{})
}

func (c *NoAuthClient) noAuth() {}

// UserAuthClient authorizes requests with a user access token and an optional
// namespace path root.
type UserAuthClient struct {
	transport *Transport
	token     string

	mu          sync.RWMutex
	namespaceID string
}

// NewUserAuthClient constructs a client for the given OAuth2 access token.
func NewUserAuthClient(token string, opts ...Option) (*UserAuthClient, error) {
	return NewUserAuthClientWithTransport(token, NewTransport(opts...))
}

// NewUserAuthClientWithTransport shares an existing Transport.
func NewUserAuthClientWithTransport(token string, t *Transport) (*UserAuthClient, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	return &UserAuthClient{transport: t, token: token}, nil
}

// SetNamespaceID sets the namespace used as the path root of later requests.
// An empty id restores the default root.
func (c *UserAuthClient) SetNamespaceID(namespaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaceID = namespaceID
}

// NamespaceID returns the current path root namespace, if any.
func (c *UserAuthClient) NamespaceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namespaceID
}

// Request implements Client.
func (c *UserAuthClient) Request(ctx context.Context, req *Request) (*RawResult, error) {
	return c.transport.Dispatch(ctx, req, Auth{Token: c.token, NamespaceID: c.NamespaceID()})
}

func (c *UserAuthClient) userAuth() {}

// TeamAuthClient authorizes requests with a team access token and an optional
// member or admin selection.
type TeamAuthClient struct {
	transport *Transport
	token     string

	mu       sync.RWMutex
	selected *TeamSelect
}

// NewTeamAuthClient constructs a client for the given team access token with
// no member selected.
func NewTeamAuthClient(token string, opts ...Option) (*TeamAuthClient, error) {
	return NewTeamAuthClientWithTransport(token, NewTransport(opts...))
}

// NewTeamAuthClientWithTransport shares an existing Transport.
func NewTeamAuthClientWithTransport(token string, t *Transport) (*TeamAuthClient, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	return &TeamAuthClient{transport: t, token: token}, nil
}

// Select picks the member or admin context for later requests. nil clears it.
func (c *TeamAuthClient) Select(sel *TeamSelect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sel == nil {
		c.selected = nil
		return
	}
	copied := *sel
	c.selected = &copied
}

// Request implements Client.
func (c *TeamAuthClient) Request(ctx context.Context, req *Request) (*RawResult, error) {
	c.mu.RLock()
	sel := c.selected
	c.mu.RUnlock()
	return c.transport.Dispatch(ctx, req, Auth{Token: c.token, Team: sel})
}

func (c *TeamAuthClient) teamAuth() {}
