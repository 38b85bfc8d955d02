package files

import (
	"context"
	"io"
	"sync"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// DownloadSource opens a file's content at arbitrary offsets. It satisfies
// download.Source.
type DownloadSource struct {
	Client dropbox.UserAuth
	Arg    DownloadArg

	mu       sync.Mutex
	metadata *FileMetadata
}

// NewDownloadSource returns a source for the file at path.
func NewDownloadSource(c dropbox.UserAuth, path string) *DownloadSource {
	return &DownloadSource{Client: c, Arg: DownloadArg{Path: path}}
}

// Open requests the content from offset to the end of the file. The first
// successful Open pins Arg.Rev, when unset, to the revision it received so a
// resumed download never mixes two revisions; if the file changed meanwhile
// the reopen fails with a path/not_found route error.
func (s *DownloadSource) Open(ctx context.Context, offset uint64) (io.ReadCloser, *uint64, error) {
	s.mu.Lock()
	arg := s.Arg
	s.mu.Unlock()

	res, err := Download(ctx, s.Client, &arg, dropbox.Uint64(offset), nil)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	meta := res.Result
	s.metadata = &meta
	if s.Arg.Rev == "" {
		s.Arg.Rev = meta.Rev
	}
	s.mu.Unlock()
	return res.Body, res.ContentLength, nil
}

// Metadata returns the file metadata of the most recent Open, or nil.
func (s *DownloadSource) Metadata() *FileMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}
