package sandbox

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

// listingCursor is the server side of a list_folder cursor: the entries not
// yet returned, the page size and the store version the listing was taken at.
type listingCursor struct {
	remaining []files.Metadata
	size      int
	version   uint64
}

type cursorTable struct {
	mu      sync.Mutex
	cursors map[string]*listingCursor
}

func newCursorTable() *cursorTable {
	return &cursorTable{cursors: make(map[string]*listingCursor)}
}

func (t *cursorTable) issue(c *listingCursor) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.cursors[id] = c
	t.mu.Unlock()
	return id
}

func (t *cursorTable) lookup(id string) (*listingCursor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cursors[id]
	return c, ok
}

// page splits entries into one page of at most size entries and a cursor for
// the rest. The cursor is issued even for the last page so it can be polled.
func (t *cursorTable) page(entries []files.Metadata, size int, version uint64) *files.ListFolderResult {
	n := len(entries)
	if size > 0 && size < n {
		n = size
	}
	first := make(files.MetadataList, n)
	copy(first, entries)
	rest := append([]files.Metadata(nil), entries[n:]...)
	return &files.ListFolderResult{
		Entries: first,
		Cursor:  t.issue(&listingCursor{remaining: rest, size: size, version: version}),
		HasMore: len(rest) > 0,
	}
}
