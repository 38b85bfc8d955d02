package files_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

func newClient(t *testing.T, mux *http.ServeMux) *dropbox.UserAuthClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := dropbox.NewUserAuthClient("tok",
		dropbox.WithEndpointURL(dropbox.EndpointAPI, srv.URL+"/2/"),
		dropbox.WithEndpointURL(dropbox.EndpointContent, srv.URL+"/2/"),
		dropbox.WithEndpointURL(dropbox.EndpointNotify, srv.URL+"/2/"),
	)
	require.NoError(t, err)
	return client
}

func decodeBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}

func TestListDirectoryWalksAllPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/list_folder", func(w http.ResponseWriter, r *http.Request) {
		var arg files.ListFolderArg
		decodeBody(t, r, &arg)
		assert.Equal(t, "", arg.Path)
		assert.True(t, arg.Recursive)
		io.WriteString(w, `{"entries":[
			{".tag":"folder","name":"A","path_display":"/A","id":"id:a"},
			{".tag":"file","name":"B","path_display":"/A/B","id":"id:b","rev":"1","size":3,
			 "client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}
		],"cursor":"c1","has_more":true}`)
	})
	mux.HandleFunc("/2/files/list_folder/continue", func(w http.ResponseWriter, r *http.Request) {
		var arg files.ListFolderContinueArg
		decodeBody(t, r, &arg)
		assert.Equal(t, "c1", arg.Cursor)
		io.WriteString(w, `{"entries":[{".tag":"file","name":"C","path_display":"/C","id":"id:c","rev":"2","size":1,
			"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}],"cursor":"c2","has_more":false}`)
	})
	client := newClient(t, mux)

	it, err := files.ListDirectory(context.Background(), client, "/", true)
	require.NoError(t, err)

	var got []string
	for entry, err := range it.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, files.DisplayPath(entry))
	}
	assert.Equal(t, []string{"/A", "/A/B", "/C"}, got)
}

func TestListDirectoryRejectsRelativePath(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	client := newClient(t, mux)

	_, err := files.ListDirectory(context.Background(), client, "relative/path", false)
	assert.ErrorIs(t, err, files.ErrRelativePath)
	assert.Zero(t, calls.Load())
}

func TestListDirectoryReturnsInitialRouteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/list_folder", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error_summary":"path/not_found/..","error":{".tag":"path","path":{".tag":"not_found"}}}`)
	})
	client := newClient(t, mux)

	_, err := files.ListDirectory(context.Background(), client, "/missing", false)
	var apiErr *dropbox.APIError[files.ListFolderError]
	require.True(t, errors.As(err, &apiErr), "got %T: %v", err, err)
	assert.True(t, apiErr.Err.Path.IsNotFound())
	assert.Equal(t, "list_folder: path/not_found", apiErr.Err.Error())
}

func TestListDirectoryContinuationReset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/list_folder", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"entries":[],"cursor":"stale","has_more":true}`)
	})
	mux.HandleFunc("/2/files/list_folder/continue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error_summary":"reset/..","error":{".tag":"reset"}}`)
	})
	client := newClient(t, mux)

	it, err := files.ListDirectory(context.Background(), client, "/A", false)
	require.NoError(t, err)
	assert.False(t, it.Next(context.Background()))

	var apiErr *dropbox.APIError[files.ListFolderContinueError]
	require.ErrorAs(t, it.Err(), &apiErr)
	assert.True(t, apiErr.Err.IsReset())
}

func TestGetMetadataDecodesVariant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/get_metadata", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{".tag":"deleted","name":"x","path_display":"/x"}`)
	})
	client := newClient(t, mux)

	m, err := files.GetMetadata(context.Background(), client, &files.GetMetadataArg{Path: "/x", IncludeDeleted: true})
	require.NoError(t, err)
	_, ok := m.(*files.DeletedMetadata)
	assert.True(t, ok, "got %T", m)
}

func TestDownloadSourceOpensAtOffset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=4-", r.Header.Get("Range"))
		assert.Equal(t, `{"path":"/f.txt"}`, r.Header.Get("Dropbox-API-Arg"))
		w.Header().Set("Dropbox-API-Result", `{"name":"f.txt","id":"id:f","rev":"9","size":6,"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}`)
		io.WriteString(w, "45")
	})
	client := newClient(t, mux)

	src := files.NewDownloadSource(client, "/f.txt")
	body, length, err := src.Open(context.Background(), 4)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "45", string(data))
	require.NotNil(t, length)
	assert.Equal(t, uint64(2), *length)
	require.NotNil(t, src.Metadata())
	assert.Equal(t, uint64(6), src.Metadata().Size)
}

func TestDownloadSourcePinsRevision(t *testing.T) {
	var args []string
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/download", func(w http.ResponseWriter, r *http.Request) {
		args = append(args, r.Header.Get("Dropbox-API-Arg"))
		w.Header().Set("Dropbox-API-Result", `{"name":"f.txt","id":"id:f","rev":"9","size":2,"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}`)
		io.WriteString(w, "ab")
	})
	client := newClient(t, mux)

	src := files.NewDownloadSource(client, "/f.txt")
	for _, offset := range []uint64{0, 1} {
		body, _, err := src.Open(context.Background(), offset)
		require.NoError(t, err)
		body.Close()
	}
	assert.Equal(t, []string{`{"path":"/f.txt"}`, `{"path":"/f.txt","rev":"9"}`}, args)
	assert.Equal(t, "9", src.Arg.Rev)
}

func TestUploadAndDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		var arg files.CommitInfo
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		assert.Equal(t, "overwrite", arg.Mode.Tag)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(body))
		io.WriteString(w, `{"name":"h.txt","path_display":"/h.txt","id":"id:h","rev":"1","size":5,
			"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}`)
	})
	mux.HandleFunc("/2/files/delete_v2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"metadata":{".tag":"file","name":"h.txt","path_display":"/h.txt","id":"id:h","rev":"1","size":5,
			"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}}`)
	})
	client := newClient(t, mux)

	meta, err := files.Upload(context.Background(), client, &files.CommitInfo{Path: "/h.txt", Mode: files.WriteModeOverwrite}, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Size)

	deleted, err := files.Delete(context.Background(), client, &files.DeleteArg{Path: "/h.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/h.txt", files.DisplayPath(deleted))
}

func TestListFolderLongpollUsesNoToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/list_folder/longpoll", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"changes":true,"backoff":5}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	client := dropbox.NewNoAuthClient(dropbox.WithEndpointURL(dropbox.EndpointNotify, srv.URL+"/2/"))

	res, err := files.ListFolderLongpoll(context.Background(), client, &files.ListFolderLongpollArg{Cursor: "c", Timeout: 30})
	require.NoError(t, err)
	assert.True(t, res.Changes)
	require.NotNil(t, res.Backoff)
	assert.Equal(t, uint64(5), *res.Backoff)
}
