package sandbox_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/dropbox_sdk_go/internal/devseed"
	"github.com/Ratio1/dropbox_sdk_go/pkg/download"
	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
	"github.com/Ratio1/dropbox_sdk_go/pkg/oauth2"
	"github.com/Ratio1/dropbox_sdk_go/pkg/sandbox"
)

func startSandbox(t *testing.T, opts ...sandbox.Option) (*sandbox.Server, string) {
	t.Helper()
	srv := sandbox.New(opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func userClient(t *testing.T, baseURL string) *dropbox.UserAuthClient {
	t.Helper()
	client, err := dropbox.NewUserAuthClient("tok", sandbox.EndpointOptions(baseURL)...)
	require.NoError(t, err)
	return client
}

func seed(t *testing.T, srv *sandbox.Server, entries ...devseed.Entry) {
	t.Helper()
	require.NoError(t, srv.Store().Seed(entries))
}

func TestListDirectoryAcrossPages(t *testing.T) {
	srv, url := startSandbox(t, sandbox.WithPageSize(2))
	seed(t, srv,
		devseed.Entry{Path: "/Docs/a.txt", Content: "a"},
		devseed.Entry{Path: "/Docs/b.txt", Content: "b"},
		devseed.Entry{Path: "/Docs/Sub/c.txt", Content: "c"},
		devseed.Entry{Path: "/top.txt", Content: "t"},
	)
	client := userClient(t, url)
	ctx := context.Background()

	it, err := files.ListDirectory(ctx, client, "/", true)
	require.NoError(t, err)
	var got []string
	for entry, err := range it.All(ctx) {
		require.NoError(t, err)
		require.NoError(t, files.RequireLive(entry))
		got = append(got, files.DisplayPath(entry))
	}
	assert.Equal(t, []string{"/Docs", "/Docs/a.txt", "/Docs/b.txt", "/Docs/Sub", "/Docs/Sub/c.txt", "/top.txt"}, got)

	it, err = files.ListDirectory(ctx, client, "/Docs", false)
	require.NoError(t, err)
	got = got[:0]
	for it.Next(ctx) {
		got = append(got, it.Entry().Common().Name)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a.txt", "b.txt", "Sub"}, got)
}

func TestListDirectoryMissingFolder(t *testing.T) {
	_, url := startSandbox(t)
	_, err := files.ListDirectory(context.Background(), userClient(t, url), "/nope", false)

	var apiErr *dropbox.APIError[files.ListFolderError]
	require.True(t, errors.As(err, &apiErr), "got %T: %v", err, err)
	assert.True(t, apiErr.Err.Path.IsNotFound())
}

func TestContinueWithUnknownCursorResets(t *testing.T) {
	_, url := startSandbox(t)
	_, err := files.ListFolderContinue(context.Background(), userClient(t, url), &files.ListFolderContinueArg{Cursor: "bogus"})

	var apiErr *dropbox.APIError[files.ListFolderContinueError]
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Err.IsReset())
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	_, url := startSandbox(t)
	client := userClient(t, url)
	ctx := context.Background()

	meta, err := files.Upload(ctx, client, &files.CommitInfo{Path: "/Notes/héllo.txt", Mode: files.WriteModeAdd}, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), meta.Size)
	assert.Equal(t, "/notes/héllo.txt", meta.PathLower)

	res, err := files.Download(ctx, client, &files.DownloadArg{Path: "/notes/HÉLLO.txt"}, dropbox.Uint64(6), nil)
	require.NoError(t, err)
	defer res.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
	assert.Equal(t, "héllo.txt", res.Result.Name)
	assert.Equal(t, meta.Rev, res.Result.Rev)

	_, err = files.Upload(ctx, client, &files.CommitInfo{Path: "/Notes/héllo.txt", Mode: files.WriteModeAdd}, []byte("other"))
	var apiErr *dropbox.APIError[files.UploadError]
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upload: path/conflict/file", apiErr.Err.Error())
}

func TestDownloadResumesAfterCut(t *testing.T) {
	reg := prometheus.NewRegistry()
	failure, err := sandbox.ParseFailureConfig("cut=7")
	require.NoError(t, err)
	srv, url := startSandbox(t, sandbox.WithFailure(failure), sandbox.WithRegistry(reg))
	content := strings.Repeat("0123456789", 5)
	seed(t, srv, devseed.Entry{Path: "/big.bin", Content: content})
	client := userClient(t, url)

	var offsets []uint64
	src := files.NewDownloadSource(client, "/big.bin")
	recording := download.SourceFunc(func(ctx context.Context, offset uint64) (io.ReadCloser, *uint64, error) {
		offsets = append(offsets, offset)
		return src.Open(ctx, offset)
	})

	var out bytes.Buffer
	n, err := download.New(recording).Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(content)), n)
	assert.Equal(t, content, out.String())
	assert.Equal(t, []uint64{0, 7, 14, 21, 28, 35, 42, 49}, offsets)

	assert.Eventually(t, func() bool {
		body := scrape(t, url)
		return strings.Contains(body, `dbx_sandbox_injected_failures_total{kind="cut"} 7`) &&
			strings.Contains(body, "dbx_sandbox_download_bytes_total 50")
	}, time.Second, 10*time.Millisecond)
}

func TestResumeFailsWhenFileChanges(t *testing.T) {
	failure, err := sandbox.ParseFailureConfig("cut=7")
	require.NoError(t, err)
	srv, url := startSandbox(t, sandbox.WithFailure(failure))
	seed(t, srv, devseed.Entry{Path: "/moving.bin", Content: strings.Repeat("a", 20)})
	client := userClient(t, url)

	src := files.NewDownloadSource(client, "/moving.bin")
	var firstRev string
	changing := download.SourceFunc(func(ctx context.Context, offset uint64) (io.ReadCloser, *uint64, error) {
		if offset > 0 && firstRev == "" {
			firstRev = src.Metadata().Rev
			_, err := srv.Store().Put("/moving.bin", []byte(strings.Repeat("b", 20)), files.WriteModeOverwrite, false)
			require.NoError(t, err)
		}
		return src.Open(ctx, offset)
	})

	var out bytes.Buffer
	n, err := download.New(changing).Run(context.Background(), &out)
	var apiErr *dropbox.APIError[files.DownloadError]
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "download: path/not_found", apiErr.Err.Error())
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, strings.Repeat("a", 7), out.String())
	assert.Equal(t, firstRev, src.Arg.Rev)
}

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestFailureInjectionIsAnnounced(t *testing.T) {
	var logs bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Info})

	sandbox.New(sandbox.WithLogger(logger))
	assert.NotContains(t, logs.String(), "failure injection enabled")

	failure, err := sandbox.ParseFailureConfig("rate=0.5,code=503")
	require.NoError(t, err)
	sandbox.New(sandbox.WithLogger(logger), sandbox.WithFailure(failure))
	assert.Contains(t, logs.String(), "failure injection enabled")
	assert.Contains(t, logs.String(), "code=503")
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	_, url := startSandbox(t, sandbox.WithToken("right"))
	client, err := dropbox.NewUserAuthClient("wrong", sandbox.EndpointOptions(url)...)
	require.NoError(t, err)

	_, err = files.GetMetadata(context.Background(), client, &files.GetMetadataArg{Path: "/x"})
	var httpErr *dropbox.UnexpectedHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	assert.Contains(t, httpErr.JSON, "invalid_access_token")
}

func TestInjectedFailureStatus(t *testing.T) {
	_, url := startSandbox(t, sandbox.WithFailure(sandbox.FailureConfig{Rate: 1, Code: http.StatusServiceUnavailable}))

	_, err := files.GetMetadata(context.Background(), userClient(t, url), &files.GetMetadataArg{Path: "/x"})
	var httpErr *dropbox.UnexpectedHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Code)
}

func TestCreateFolderAndDelete(t *testing.T) {
	_, url := startSandbox(t)
	client := userClient(t, url)
	ctx := context.Background()

	folder, err := files.CreateFolder(ctx, client, &files.CreateFolderArg{Path: "/Projects"})
	require.NoError(t, err)
	assert.Equal(t, "/Projects", folder.PathDisplay)

	_, err = files.CreateFolder(ctx, client, &files.CreateFolderArg{Path: "/projects"})
	var conflict *dropbox.APIError[files.CreateFolderError]
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "conflict/folder", conflict.Err.Path.String())

	renamed, err := files.CreateFolder(ctx, client, &files.CreateFolderArg{Path: "/Projects", Autorename: true})
	require.NoError(t, err)
	assert.Equal(t, "/Projects (1)", renamed.PathDisplay)

	deleted, err := files.Delete(ctx, client, &files.DeleteArg{Path: "/Projects"})
	require.NoError(t, err)
	_, isFolder := deleted.(*files.FolderMetadata)
	assert.True(t, isFolder)

	meta, err := files.GetMetadata(ctx, client, &files.GetMetadataArg{Path: "/Projects", IncludeDeleted: true})
	require.NoError(t, err)
	var gone *files.UnexpectedDeletedError
	assert.ErrorAs(t, files.RequireLive(meta), &gone)

	_, err = files.Delete(ctx, client, &files.DeleteArg{Path: "/Projects"})
	var lookup *dropbox.APIError[files.DeleteError]
	require.ErrorAs(t, err, &lookup)
	assert.True(t, lookup.Err.PathLookup.IsNotFound())
}

func TestLongpollReportsChanges(t *testing.T) {
	srv, url := startSandbox(t)
	seed(t, srv, devseed.Entry{Path: "/w", Folder: true})
	client := userClient(t, url)
	ctx := context.Background()

	first, err := files.ListFolder(ctx, client, &files.ListFolderArg{Path: "/w"})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.Store().Put("/w/new.txt", []byte("x"), files.WriteModeAdd, false)
	}()

	notify := dropbox.NewNoAuthClient(sandbox.EndpointOptions(url)...)
	res, err := files.ListFolderLongpoll(ctx, notify, &files.ListFolderLongpollArg{Cursor: first.Cursor, Timeout: 30})
	require.NoError(t, err)
	assert.True(t, res.Changes)
}

func TestOAuthTokenExchange(t *testing.T) {
	_, url := startSandbox(t, sandbox.WithToken("issued"))
	cfg := &oauth2.Config{ClientID: "key", ClientSecret: "secret"}

	token, err := cfg.ExchangeCode(context.Background(), dropbox.NewNoAuthClient(sandbox.EndpointOptions(url)...), "code")
	require.NoError(t, err)
	assert.Equal(t, "issued", token.AccessToken)
	assert.Equal(t, "dbid:sandbox", token.Extra("account_id"))

	_, err = cfg.ExchangeCode(context.Background(), dropbox.NewNoAuthClient(sandbox.EndpointOptions(url)...), " ")
	assert.Error(t, err)
}

func TestListenServesUntilClosed(t *testing.T) {
	srv := sandbox.New()
	run, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)

	client, err := dropbox.NewUserAuthClient("tok", run.EndpointOptions()...)
	require.NoError(t, err)
	_, err = files.CreateFolder(context.Background(), client, &files.CreateFolderArg{Path: "/x"})
	require.NoError(t, err)

	require.NoError(t, run.Close())
	_, err = files.CreateFolder(context.Background(), client, &files.CreateFolderArg{Path: "/y"})
	var clientErr *dropbox.HTTPClientError
	assert.ErrorAs(t, err, &clientErr)
}
