package files

import (
	"errors"
	"fmt"
)

// ErrRelativePath is returned when a listing is requested for a path that
// does not start with "/".
var ErrRelativePath = errors.New("files: path needs to be absolute (start with a '/')")

// UnexpectedDeletedError reports a deleted entry where only live entries were
// expected.
type UnexpectedDeletedError struct {
	Path string
}

func (e *UnexpectedDeletedError) Error() string {
	return fmt.Sprintf("files: unexpected deleted entry %q", e.Path)
}

// RequireLive returns an *UnexpectedDeletedError for deleted entries.
func RequireLive(m Metadata) error {
	if d, ok := m.(*DeletedMetadata); ok {
		return &UnexpectedDeletedError{Path: DisplayPath(d)}
	}
	return nil
}

// tagPath joins a union tag with the nested tag, if any. Nested String methods
// are nil safe.
func tagPath(tag string, inner fmt.Stringer) string {
	if s := inner.String(); s != "" {
		return tag + "/" + s
	}
	return tag
}

// LookupError explains why a path could not be resolved.
type LookupError struct {
	Tag           string  `json:".tag"`
	MalformedPath *string `json:"malformed_path,omitempty"`
}

func (e *LookupError) String() string {
	if e == nil {
		return ""
	}
	return e.Tag
}

// IsNotFound reports whether nothing exists at the path.
func (e *LookupError) IsNotFound() bool {
	return e != nil && e.Tag == "not_found"
}

// WriteError explains why a write was rejected.
type WriteError struct {
	Tag           string  `json:".tag"`
	MalformedPath *string `json:"malformed_path,omitempty"`
	Conflict      *struct {
		Tag string `json:".tag"`
	} `json:"conflict,omitempty"`
}

func (e *WriteError) String() string {
	if e == nil {
		return ""
	}
	if e.Conflict != nil {
		return e.Tag + "/" + e.Conflict.Tag
	}
	return e.Tag
}

// ListFolderError is the route error of files/list_folder.
type ListFolderError struct {
	Tag  string       `json:".tag"`
	Path *LookupError `json:"path,omitempty"`
}

func (e ListFolderError) Error() string {
	return "list_folder: " + tagPath(e.Tag, e.Path)
}

// ListFolderContinueError is the route error of files/list_folder/continue.
// Tag "reset" means the cursor expired and the listing must restart.
type ListFolderContinueError struct {
	Tag  string       `json:".tag"`
	Path *LookupError `json:"path,omitempty"`
}

func (e ListFolderContinueError) Error() string {
	return "list_folder/continue: " + tagPath(e.Tag, e.Path)
}

// IsReset reports whether the cursor was invalidated.
func (e ListFolderContinueError) IsReset() bool {
	return e.Tag == "reset"
}

// ListFolderLongpollError is the route error of files/list_folder/longpoll.
type ListFolderLongpollError struct {
	Tag string `json:".tag"`
}

func (e ListFolderLongpollError) Error() string {
	return "list_folder/longpoll: " + e.Tag
}

// GetMetadataError is the route error of files/get_metadata.
type GetMetadataError struct {
	Tag  string       `json:".tag"`
	Path *LookupError `json:"path,omitempty"`
}

func (e GetMetadataError) Error() string {
	return "get_metadata: " + tagPath(e.Tag, e.Path)
}

// DownloadError is the route error of files/download.
type DownloadError struct {
	Tag  string       `json:".tag"`
	Path *LookupError `json:"path,omitempty"`
}

func (e DownloadError) Error() string {
	return "download: " + tagPath(e.Tag, e.Path)
}

// UploadWriteFailed carries the write failure of an upload.
type UploadWriteFailed struct {
	Reason WriteError `json:"reason"`
}

// UploadError is the route error of files/upload.
type UploadError struct {
	Tag  string             `json:".tag"`
	Path *UploadWriteFailed `json:"path,omitempty"`
}

func (e UploadError) Error() string {
	if e.Path != nil {
		return "upload: " + tagPath(e.Tag, &e.Path.Reason)
	}
	return "upload: " + e.Tag
}

// CreateFolderError is the route error of files/create_folder_v2.
type CreateFolderError struct {
	Tag  string      `json:".tag"`
	Path *WriteError `json:"path,omitempty"`
}

func (e CreateFolderError) Error() string {
	return "create_folder: " + tagPath(e.Tag, e.Path)
}

// DeleteError is the route error of files/delete_v2.
type DeleteError struct {
	Tag        string       `json:".tag"`
	PathLookup *LookupError `json:"path_lookup,omitempty"`
	PathWrite  *WriteError  `json:"path_write,omitempty"`
}

func (e DeleteError) Error() string {
	switch {
	case e.PathLookup != nil:
		return "delete: " + tagPath(e.Tag, e.PathLookup)
	case e.PathWrite != nil:
		return "delete: " + tagPath(e.Tag, e.PathWrite)
	default:
		return "delete: " + e.Tag
	}
}

