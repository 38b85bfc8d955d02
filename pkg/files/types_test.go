package files

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadataVariants(t *testing.T) {
	cases := map[string]struct {
		input string
		check func(t *testing.T, m Metadata)
	}{
		"file": {
			input: `{".tag":"file","name":"a.txt","path_lower":"/a.txt","id":"id:1","rev":"0a","size":12,"client_modified":"2024-01-02T03:04:05Z","server_modified":"2024-01-02T03:04:05Z"}`,
			check: func(t *testing.T, m Metadata) {
				f, ok := m.(*FileMetadata)
				require.True(t, ok)
				assert.Equal(t, uint64(12), f.Size)
				assert.Equal(t, "/a.txt", f.PathLower)
			},
		},
		"folder": {
			input: `{".tag":"folder","name":"dir","id":"id:2"}`,
			check: func(t *testing.T, m Metadata) {
				f, ok := m.(*FolderMetadata)
				require.True(t, ok)
				assert.Equal(t, "id:2", f.ID)
			},
		},
		"deleted": {
			input: `{".tag":"deleted","name":"old"}`,
			check: func(t *testing.T, m Metadata) {
				_, ok := m.(*DeletedMetadata)
				require.True(t, ok)
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := DecodeMetadata([]byte(tc.input))
			require.NoError(t, err)
			tc.check(t, m)
		})
	}

	_, err := DecodeMetadata([]byte(`{".tag":"symlink","name":"x"}`))
	assert.Error(t, err)
}

func TestMetadataMarshalCarriesTag(t *testing.T) {
	data, err := json.Marshal(&FolderMetadata{CommonMetadata: CommonMetadata{Name: "d"}, ID: "id:d"})
	require.NoError(t, err)
	assert.JSONEq(t, `{".tag":"folder","name":"d","id":"id:d"}`, string(data))

	back, err := DecodeMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, "d", back.Common().Name)
}

func TestDisplayPathFallsBackToName(t *testing.T) {
	assert.Equal(t, "n", DisplayPath(&FolderMetadata{CommonMetadata: CommonMetadata{Name: "n"}}))
	assert.Equal(t, "/p/n", DisplayPath(&FolderMetadata{CommonMetadata: CommonMetadata{Name: "n", PathDisplay: "/p/n"}}))
}

func TestRouteErrorStrings(t *testing.T) {
	assert.Equal(t, "download: path/not_found", DownloadError{Tag: "path", Path: &LookupError{Tag: "not_found"}}.Error())
	assert.Equal(t, "download: other", DownloadError{Tag: "other"}.Error())

	var upload UploadError
	require.NoError(t, json.Unmarshal([]byte(`{".tag":"path","path":{"reason":{".tag":"conflict","conflict":{".tag":"file"}}}}`), &upload))
	assert.Equal(t, "upload: path/conflict/file", upload.Error())

	assert.Equal(t, "delete: path_lookup/not_found", DeleteError{Tag: "path_lookup", PathLookup: &LookupError{Tag: "not_found"}}.Error())
}
