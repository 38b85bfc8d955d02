package files

import (
	"context"
	"iter"
	"strings"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// Pager fetches the listing page that follows cursor.
type Pager interface {
	Continue(ctx context.Context, cursor string) (*ListFolderResult, error)
}

// PagerFunc adapts a function to Pager.
type PagerFunc func(ctx context.Context, cursor string) (*ListFolderResult, error)

// Continue implements Pager.
func (f PagerFunc) Continue(ctx context.Context, cursor string) (*ListFolderResult, error) {
	return f(ctx, cursor)
}

type continuePager struct {
	client dropbox.UserAuth
}

func (p continuePager) Continue(ctx context.Context, cursor string) (*ListFolderResult, error) {
	return ListFolderContinue(ctx, p.client, &ListFolderContinueArg{Cursor: cursor})
}

// ListDirectory lists path, following continuation cursors lazily as the
// returned iterator is consumed. Errors of the first page are returned here;
// errors of later pages surface through the iterator.
func ListDirectory(ctx context.Context, c dropbox.UserAuth, path string, recursive bool) (*DirectoryIterator, error) {
	return ListDirectoryWith(ctx, c, &ListFolderArg{Path: path, Recursive: recursive})
}

// ListDirectoryWith is ListDirectory with the full set of listing options.
func ListDirectoryWith(ctx context.Context, c dropbox.UserAuth, arg *ListFolderArg) (*DirectoryIterator, error) {
	requested, err := listPath(arg.Path)
	if err != nil {
		return nil, err
	}
	first := *arg
	first.Path = requested
	page, err := ListFolder(ctx, c, &first)
	if err != nil {
		return nil, err
	}
	return NewDirectoryIterator(page, continuePager{client: c}), nil
}

// listPath maps an absolute path to the form files/list_folder expects; the
// root is the empty string.
func listPath(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", ErrRelativePath
	}
	if path == "/" {
		return "", nil
	}
	return path, nil
}

type step int

const (
	stepYield step = iota
	stepFetch
	stepDone
)

// listing is the buffered state of a walk. A nil cursor means no page is
// left to fetch.
type listing struct {
	buffer []Metadata
	cursor *string
}

// advance pops the next buffered entry, or hands out the cursor to fetch when
// the buffer is empty. A handed out cursor is consumed.
func (l *listing) advance() (step, Metadata, string) {
	if len(l.buffer) > 0 {
		entry := l.buffer[0]
		l.buffer[0] = nil
		l.buffer = l.buffer[1:]
		return stepYield, entry, ""
	}
	if l.cursor != nil {
		cursor := *l.cursor
		l.cursor = nil
		return stepFetch, nil, cursor
	}
	return stepDone, nil, ""
}

func (l *listing) fill(page *ListFolderResult) {
	l.buffer = append(l.buffer, page.Entries...)
	l.cursor = nil
	if page.HasMore {
		cursor := page.Cursor
		l.cursor = &cursor
	}
}

// DirectoryIterator walks a folder listing across pages. Entries come out in
// server order. Use it like bufio.Scanner:
//
//	for it.Next(ctx) {
//		fmt.Println(files.DisplayPath(it.Entry()))
//	}
//	if err := it.Err(); err != nil { ... }
//
// A failed continuation ends the walk; the error is kept in Err and is
// typically *dropbox.APIError[ListFolderContinueError] or a transport error.
type DirectoryIterator struct {
	state listing
	pager Pager
	entry Metadata
	err   error
	done  bool

	// delivered is set once All has yielded err.
	delivered bool
}

// NewDirectoryIterator starts a walk from an already fetched first page.
func NewDirectoryIterator(first *ListFolderResult, pager Pager) *DirectoryIterator {
	it := &DirectoryIterator{pager: pager}
	if first != nil {
		it.state.fill(first)
	}
	return it
}

// Next moves to the next entry, fetching pages as needed.
func (it *DirectoryIterator) Next(ctx context.Context) bool {
	it.entry = nil
	if it.done {
		return false
	}
	for {
		st, entry, cursor := it.state.advance()
		switch st {
		case stepYield:
			it.entry = entry
			return true
		case stepFetch:
			page, err := it.pager.Continue(ctx, cursor)
			if err != nil {
				it.err = err
				it.done = true
				return false
			}
			it.state.fill(page)
		default:
			it.done = true
			return false
		}
	}
}

// Entry returns the entry Next moved to.
func (it *DirectoryIterator) Entry() Metadata {
	return it.entry
}

// Err returns the continuation error that ended the walk, if any.
func (it *DirectoryIterator) Err() error {
	return it.err
}

// All returns the remaining entries as a sequence. A continuation failure is
// delivered once as (nil, err) and ends the sequence; later calls on the same
// iterator yield nothing. Err still reports it.
func (it *DirectoryIterator) All(ctx context.Context) iter.Seq2[Metadata, error] {
	return func(yield func(Metadata, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Entry(), nil) {
				return
			}
		}
		if it.err != nil && !it.delivered {
			it.delivered = true
			yield(nil, it.err)
		}
	}
}
