package sandbox

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

func TestStorePutModes(t *testing.T) {
	s := NewStore(nil)

	first, err := s.Put("/a.txt", []byte("one"), files.WriteModeAdd, false)
	require.NoError(t, err)

	same, err := s.Put("/A.txt", []byte("one"), files.WriteModeAdd, false)
	require.NoError(t, err)
	assert.Equal(t, first.Rev, same.Rev)

	_, err = s.Put("/a.txt", []byte("two"), files.WriteModeAdd, false)
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "conflict", pathErr.Tag)
	assert.Equal(t, "file", pathErr.Conflict)

	renamed, err := s.Put("/a.txt", []byte("two"), files.WriteModeAdd, true)
	require.NoError(t, err)
	assert.Equal(t, "/a (1).txt", renamed.PathDisplay)

	_, err = s.Put("/a.txt", []byte("three"), files.WriteModeUpdate("stale"), false)
	require.ErrorAs(t, err, &pathErr)

	updated, err := s.Put("/a.txt", []byte("three"), files.WriteModeUpdate(first.Rev), false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.NotEqual(t, first.Rev, updated.Rev)

	data, meta, err := s.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
	assert.Equal(t, uint64(5), meta.Size)
}

func TestStoreFileBlocksParentFolder(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Put("/f", []byte("x"), files.WriteModeAdd, false)
	require.NoError(t, err)

	_, err = s.Put("/f/child.txt", []byte("y"), files.WriteModeAdd, false)
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "conflict", pathErr.Tag)
}

func TestStoreListAndDelete(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Put("/d/x.txt", []byte("x"), files.WriteModeAdd, false)
	require.NoError(t, err)
	_, err = s.Put("/d/e/y.txt", []byte("y"), files.WriteModeAdd, false)
	require.NoError(t, err)

	_, err = s.List("/d/x.txt", false, false)
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "not_folder", pathErr.Tag)

	before := s.Version()
	_, err = s.Delete("/d/e")
	require.NoError(t, err)
	assert.Greater(t, s.Version(), before)

	entries, err := s.List("/d", false, true)
	require.NoError(t, err)
	var tags []string
	for _, e := range entries {
		switch e.(type) {
		case *files.FileMetadata:
			tags = append(tags, "file:"+e.Common().Name)
		case *files.DeletedMetadata:
			tags = append(tags, "deleted:"+e.Common().Name)
		}
	}
	assert.ElementsMatch(t, []string{"file:x.txt", "deleted:e"}, tags)

	_, _, err = s.Read("/d/e/y.txt")
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "not_found", pathErr.Tag)
}

func TestStoreRejectsMalformedPaths(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Mkdir("relative", false)
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "malformed_path", pathErr.Tag)

	_, err = s.Stat("/", false)
	require.ErrorAs(t, err, &pathErr)
}

func TestContentHashOfEmptyInput(t *testing.T) {
	// SHA-256 of the empty string, as no blocks are hashed.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", contentHash(nil))
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		header     string
		start, end int
		partial    bool
		wantErr    bool
	}{
		{header: "", start: 0, end: 10},
		{header: "bytes=3-", start: 3, end: 10, partial: true},
		{header: "bytes=-4", start: 6, end: 10, partial: true},
		{header: "bytes=-40", start: 0, end: 10, partial: true},
		{header: "bytes=2-5", start: 2, end: 6, partial: true},
		{header: "bytes=2-50", start: 2, end: 10, partial: true},
		{header: "bytes=10-", start: 10, end: 10, partial: true},
		{header: "bytes=11-", wantErr: true},
		{header: "bytes=5-2", wantErr: true},
		{header: "bytes=0-1,3-4", wantErr: true},
		{header: "items=0-1", wantErr: true},
	}
	for _, tc := range cases {
		start, end, partial, err := parseRange(tc.header, 10)
		if tc.wantErr {
			assert.Error(t, err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.start, start, tc.header)
		assert.Equal(t, tc.end, end, tc.header)
		assert.Equal(t, tc.partial, partial, tc.header)
	}
}

func TestParseFailureConfig(t *testing.T) {
	cfg, err := ParseFailureConfig("rate=0.25, code=503, cut=1024")
	require.NoError(t, err)
	assert.Equal(t, FailureConfig{Rate: 0.25, Code: 503, Cut: 1024}, cfg)

	cfg, err = ParseFailureConfig("rate=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, cfg.status())

	cfg, err = ParseFailureConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled())

	for _, bad := range []string{"rate", "rate=x", "rate=2", "cut=0", "speed=1"} {
		_, err := ParseFailureConfig(bad)
		assert.Error(t, err, bad)
	}
}
