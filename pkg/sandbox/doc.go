// Package sandbox serves a local imitation of the Dropbox API for tests and
// development. It implements the files routes used by this module over an
// in-memory namespace, issues tokens from oauth2/token, and can inject
// failures, including download streams cut short to exercise range resume.
//
// Typical use in a test:
//
//	srv := sandbox.New(sandbox.WithPageSize(2))
//	ts := httptest.NewServer(srv)
//	client, _ := dropbox.NewUserAuthClient("tok", sandbox.EndpointOptions(ts.URL)...)
package sandbox
