package files

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	tagFile    = "file"
	tagFolder  = "folder"
	tagDeleted = "deleted"
)

// CommonMetadata holds the fields shared by every Metadata variant.
type CommonMetadata struct {
	Name                 string `json:"name"`
	PathLower            string `json:"path_lower,omitempty"`
	PathDisplay          string `json:"path_display,omitempty"`
	ParentSharedFolderID string `json:"parent_shared_folder_id,omitempty"`
}

// Common returns the shared fields.
func (c *CommonMetadata) Common() *CommonMetadata {
	return c
}

// Metadata is one of *FileMetadata, *FolderMetadata or *DeletedMetadata.
// Consumers switch on the concrete type.
type Metadata interface {
	Common() *CommonMetadata
	tag() string
}

// FileMetadata describes a file.
type FileMetadata struct {
	CommonMetadata
	ID             string    `json:"id"`
	ClientModified time.Time `json:"client_modified"`
	ServerModified time.Time `json:"server_modified"`
	Rev            string    `json:"rev"`
	Size           uint64    `json:"size"`
	ContentHash    string    `json:"content_hash,omitempty"`
}

// FolderMetadata describes a folder.
type FolderMetadata struct {
	CommonMetadata
	ID string `json:"id"`
}

// DeletedMetadata describes an entry that was deleted.
type DeletedMetadata struct {
	CommonMetadata
}

func (*FileMetadata) tag() string    { return tagFile }
func (*FolderMetadata) tag() string  { return tagFolder }
func (*DeletedMetadata) tag() string { return tagDeleted }

// MarshalJSON adds the ".tag" discriminator.
func (m *FileMetadata) MarshalJSON() ([]byte, error) {
	type plain FileMetadata
	return json.Marshal(struct {
		Tag string `json:".tag"`
		*plain
	}{Tag: tagFile, plain: (*plain)(m)})
}

// MarshalJSON adds the ".tag" discriminator.
func (m *FolderMetadata) MarshalJSON() ([]byte, error) {
	type plain FolderMetadata
	return json.Marshal(struct {
		Tag string `json:".tag"`
		*plain
	}{Tag: tagFolder, plain: (*plain)(m)})
}

// MarshalJSON adds the ".tag" discriminator.
func (m *DeletedMetadata) MarshalJSON() ([]byte, error) {
	type plain DeletedMetadata
	return json.Marshal(struct {
		Tag string `json:".tag"`
		*plain
	}{Tag: tagDeleted, plain: (*plain)(m)})
}

// DecodeMetadata decodes a tagged metadata document.
func DecodeMetadata(data []byte) (Metadata, error) {
	var head struct {
		Tag string `json:".tag"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("files: decode metadata tag: %w", err)
	}
	var m Metadata
	switch head.Tag {
	case tagFile:
		m = &FileMetadata{}
	case tagFolder:
		m = &FolderMetadata{}
	case tagDeleted:
		m = &DeletedMetadata{}
	default:
		return nil, fmt.Errorf("files: unknown metadata tag %q", head.Tag)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("files: decode %s metadata: %w", head.Tag, err)
	}
	return m, nil
}

// DisplayPath returns the display path, falling back to the name.
func DisplayPath(m Metadata) string {
	c := m.Common()
	if c.PathDisplay != "" {
		return c.PathDisplay
	}
	return c.Name
}

// MetadataList decodes a JSON array of tagged metadata.
type MetadataList []Metadata

// UnmarshalJSON implements json.Unmarshaler.
func (l *MetadataList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(MetadataList, 0, len(raws))
	for _, raw := range raws {
		m, err := DecodeMetadata(raw)
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	*l = out
	return nil
}

// metadataValue decodes a single tagged metadata document.
type metadataValue struct {
	Metadata
}

func (v *metadataValue) UnmarshalJSON(data []byte) error {
	m, err := DecodeMetadata(data)
	if err != nil {
		return err
	}
	v.Metadata = m
	return nil
}

func (v metadataValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Metadata)
}

// ListFolderArg is the argument of files/list_folder.
type ListFolderArg struct {
	Path           string `json:"path"`
	Recursive      bool   `json:"recursive,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	Limit          uint32 `json:"limit,omitempty"`
}

// ListFolderResult is one page of a folder listing. Cursor is only meaningful
// when HasMore is set.
type ListFolderResult struct {
	Entries MetadataList `json:"entries"`
	Cursor  string       `json:"cursor"`
	HasMore bool         `json:"has_more"`
}

// ListFolderContinueArg is the argument of files/list_folder/continue.
type ListFolderContinueArg struct {
	Cursor string `json:"cursor"`
}

// ListFolderLongpollArg is the argument of files/list_folder/longpoll.
type ListFolderLongpollArg struct {
	Cursor  string `json:"cursor"`
	Timeout uint64 `json:"timeout,omitempty"`
}

// ListFolderLongpollResult reports whether the folder changed. Backoff is the
// number of seconds to wait before polling again.
type ListFolderLongpollResult struct {
	Changes bool    `json:"changes"`
	Backoff *uint64 `json:"backoff,omitempty"`
}

// GetMetadataArg is the argument of files/get_metadata.
type GetMetadataArg struct {
	Path           string `json:"path"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// DownloadArg is the argument of files/download.
type DownloadArg struct {
	Path string `json:"path"`
	Rev  string `json:"rev,omitempty"`
}

// WriteMode selects the conflict behaviour of uploads.
type WriteMode struct {
	Tag string `json:".tag"`
	// Update is the revision to replace when Tag is "update".
	Update string `json:"update,omitempty"`
}

var (
	WriteModeAdd       = WriteMode{Tag: "add"}
	WriteModeOverwrite = WriteMode{Tag: "overwrite"}
)

// WriteModeUpdate replaces the file only if its revision matches rev.
func WriteModeUpdate(rev string) WriteMode {
	return WriteMode{Tag: "update", Update: rev}
}

// CommitInfo is the argument of files/upload.
type CommitInfo struct {
	Path           string     `json:"path"`
	Mode           WriteMode  `json:"mode"`
	Autorename     bool       `json:"autorename,omitempty"`
	ClientModified *time.Time `json:"client_modified,omitempty"`
	Mute           bool       `json:"mute,omitempty"`
}

// CreateFolderArg is the argument of files/create_folder_v2.
type CreateFolderArg struct {
	Path       string `json:"path"`
	Autorename bool   `json:"autorename,omitempty"`
}

// CreateFolderResult is the result of files/create_folder_v2.
type CreateFolderResult struct {
	Metadata FolderMetadata `json:"metadata"`
}

// DeleteArg is the argument of files/delete_v2.
type DeleteArg struct {
	Path string `json:"path"`
}

// DeleteResult is the result of files/delete_v2.
type DeleteResult struct {
	Metadata metadataValue `json:"metadata"`
}
