package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	pathpkg "path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Ratio1/dropbox_sdk_go/internal/devseed"
	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

// contentHashBlock is the block size of the Dropbox content hash.
const contentHashBlock = 4 << 20

// PathError is a lookup or write failure, shaped like the API's LookupError
// and WriteError unions.
type PathError struct {
	// Write is set for failures of mutating operations.
	Write bool
	Tag   string
	// Conflict is "file" or "folder" when Tag is "conflict".
	Conflict string
}

func (e *PathError) Error() string {
	if e.Conflict != "" {
		return fmt.Sprintf("sandbox: %s/%s", e.Tag, e.Conflict)
	}
	return "sandbox: " + e.Tag
}

// Lookup converts the error to its API form.
func (e *PathError) Lookup() *files.LookupError {
	return &files.LookupError{Tag: e.Tag}
}

// WriteError converts the error to its API form.
func (e *PathError) WriteError() *files.WriteError {
	w := &files.WriteError{Tag: e.Tag}
	if e.Conflict != "" {
		w.Conflict = &struct {
			Tag string `json:".tag"`
		}{Tag: e.Conflict}
	}
	return w
}

func lookupErr(tag string) *PathError { return &PathError{Tag: tag} }

func conflictErr(kind string) *PathError {
	return &PathError{Write: true, Tag: "conflict", Conflict: kind}
}

type node struct {
	display        string
	id             string
	folder         bool
	rev            string
	size           uint64
	contentHash    string
	clientModified time.Time
	serverModified time.Time
}

// Store is an in-memory Dropbox namespace. Contents live in an afero
// filesystem keyed by lower-cased path; metadata lives alongside.
type Store struct {
	mu      sync.RWMutex
	fs      afero.Fs
	nodes   map[string]*node
	deleted map[string]string
	version uint64
	changed chan struct{}
	now     func() time.Time
}

// NewStore constructs an empty namespace over fs. A nil fs uses memory.
func NewStore(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	_ = fs.MkdirAll("/", 0o755)
	return &Store{
		fs:      fs,
		nodes:   make(map[string]*node),
		deleted: make(map[string]string),
		changed: make(chan struct{}),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Second)
		},
	}
}

// Seed creates the seed entries in order.
func (s *Store) Seed(entries []devseed.Entry) error {
	for _, e := range entries {
		if e.Folder {
			if _, err := s.Mkdir(e.Path, false); err != nil {
				return fmt.Errorf("sandbox: seed folder %s: %w", e.Path, err)
			}
			continue
		}
		data, err := e.Data()
		if err != nil {
			return err
		}
		if _, err := s.Put(e.Path, data, files.WriteModeOverwrite, false); err != nil {
			return fmt.Errorf("sandbox: seed file %s: %w", e.Path, err)
		}
	}
	return nil
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// WaitChange blocks until the version moves past since, ctx ends or timeout
// elapses. It reports whether a change happened.
func (s *Store) WaitChange(ctx context.Context, since uint64, timeout time.Duration) bool {
	s.mu.RLock()
	if s.version != since {
		s.mu.RUnlock()
		return true
	}
	ch := s.changed
	s.mu.RUnlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// bump must be called with mu held for writing.
func (s *Store) bump() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// cleanPath validates an absolute path and returns its display and lower
// forms. The root is "" in both forms and only allowed when allowRoot is set.
func cleanPath(p string, allowRoot bool) (string, string, error) {
	if p == "" || p == "/" {
		if allowRoot {
			return "", "", nil
		}
		return "", "", lookupErr("malformed_path")
	}
	if !strings.HasPrefix(p, "/") {
		return "", "", lookupErr("malformed_path")
	}
	display := pathpkg.Clean(p)
	if display == "/" {
		if allowRoot {
			return "", "", nil
		}
		return "", "", lookupErr("malformed_path")
	}
	return display, strings.ToLower(display), nil
}

func fsPath(lower string) string {
	if lower == "" {
		return "/"
	}
	return lower
}

func (s *Store) metadata(lower string, n *node) files.Metadata {
	common := files.CommonMetadata{
		Name:        pathpkg.Base(n.display),
		PathLower:   lower,
		PathDisplay: n.display,
	}
	if n.folder {
		return &files.FolderMetadata{CommonMetadata: common, ID: n.id}
	}
	return &files.FileMetadata{
		CommonMetadata: common,
		ID:             n.id,
		ClientModified: n.clientModified,
		ServerModified: n.serverModified,
		Rev:            n.rev,
		Size:           n.size,
		ContentHash:    n.contentHash,
	}
}

func deletedMetadata(lower, display string) *files.DeletedMetadata {
	return &files.DeletedMetadata{CommonMetadata: files.CommonMetadata{
		Name:        pathpkg.Base(display),
		PathLower:   lower,
		PathDisplay: display,
	}}
}

// ensureParents creates missing ancestor folders of display. Called with mu
// held for writing.
func (s *Store) ensureParents(display string) error {
	dir := pathpkg.Dir(display)
	if dir == "/" {
		return nil
	}
	lower := strings.ToLower(dir)
	if n, ok := s.nodes[lower]; ok {
		if !n.folder {
			return conflictErr("file")
		}
		return nil
	}
	if err := s.ensureParents(dir); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(lower, 0o755); err != nil {
		return err
	}
	s.nodes[lower] = &node{display: dir, id: newID(), folder: true}
	delete(s.deleted, lower)
	return nil
}

// Mkdir creates a folder and any missing parents.
func (s *Store) Mkdir(p string, autorename bool) (*files.FolderMetadata, error) {
	display, lower, err := cleanPath(p, false)
	if err != nil {
		return nil, &PathError{Write: true, Tag: "malformed_path"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[lower]; ok {
		if !autorename {
			if existing.folder {
				return nil, conflictErr("folder")
			}
			return nil, conflictErr("file")
		}
		display, lower = s.freeName(display)
	}
	if err := s.ensureParents(display); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(lower, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: mkdir %s: %w", display, err)
	}
	n := &node{display: display, id: newID(), folder: true}
	s.nodes[lower] = n
	delete(s.deleted, lower)
	s.bump()
	return s.metadata(lower, n).(*files.FolderMetadata), nil
}

// freeName appends " (n)" before the extension until the name is unused.
func (s *Store) freeName(display string) (string, string) {
	ext := pathpkg.Ext(display)
	base := strings.TrimSuffix(display, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, ok := s.nodes[strings.ToLower(candidate)]; !ok {
			return candidate, strings.ToLower(candidate)
		}
	}
}

// Put stores data at p according to mode.
func (s *Store) Put(p string, data []byte, mode files.WriteMode, autorename bool) (*files.FileMetadata, error) {
	display, lower, err := cleanPath(p, false)
	if err != nil {
		return nil, &PathError{Write: true, Tag: "malformed_path"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[lower]; ok {
		replace := false
		switch {
		case existing.folder:
		case mode.Tag == "overwrite":
			replace = true
		case mode.Tag == "update" && mode.Update == existing.rev:
			replace = true
		case mode.Tag == "add" && existing.contentHash == contentHash(data):
			return s.metadata(lower, existing).(*files.FileMetadata), nil
		}
		if !replace {
			if !autorename {
				if existing.folder {
					return nil, conflictErr("folder")
				}
				return nil, conflictErr("file")
			}
			display, lower = s.freeName(display)
		}
	}
	if err := s.ensureParents(display); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(s.fs, lower, data, 0o644); err != nil {
		return nil, fmt.Errorf("sandbox: write %s: %w", display, err)
	}
	s.bump()
	now := s.now()
	n := &node{
		display:        display,
		id:             newID(),
		rev:            fmt.Sprintf("%015x", s.version),
		size:           uint64(len(data)),
		contentHash:    contentHash(data),
		clientModified: now,
		serverModified: now,
	}
	if existing, ok := s.nodes[lower]; ok {
		n.id = existing.id
	}
	s.nodes[lower] = n
	delete(s.deleted, lower)
	return s.metadata(lower, n).(*files.FileMetadata), nil
}

// Stat returns the metadata at p. Deleted entries are only reported when
// includeDeleted is set.
func (s *Store) Stat(p string, includeDeleted bool) (files.Metadata, error) {
	_, lower, err := cleanPath(p, false)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.nodes[lower]; ok {
		return s.metadata(lower, n), nil
	}
	if display, ok := s.deleted[lower]; ok && includeDeleted {
		return deletedMetadata(lower, display), nil
	}
	return nil, lookupErr("not_found")
}

// List returns the children of p, or all descendants when recursive. For a
// recursive listing the folder itself comes first, as the API does.
func (s *Store) List(p string, recursive, includeDeleted bool) ([]files.Metadata, error) {
	_, lower, err := cleanPath(p, true)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lower != "" {
		n, ok := s.nodes[lower]
		if !ok {
			return nil, lookupErr("not_found")
		}
		if !n.folder {
			return nil, lookupErr("not_folder")
		}
	}

	var out []files.Metadata
	if recursive {
		err = afero.Walk(s.fs, fsPath(lower), func(walked string, _ os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if n, ok := s.nodes[walked]; ok {
				out = append(out, s.metadata(walked, n))
			}
			return nil
		})
	} else {
		var infos []os.FileInfo
		infos, err = afero.ReadDir(s.fs, fsPath(lower))
		for _, info := range infos {
			child := pathpkg.Join(fsPath(lower), info.Name())
			if n, ok := s.nodes[child]; ok {
				out = append(out, s.metadata(child, n))
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: list %s: %w", p, err)
	}

	if includeDeleted {
		prefix := lower + "/"
		for dl, display := range s.deleted {
			if !strings.HasPrefix(dl, prefix) {
				continue
			}
			if !recursive && strings.Contains(dl[len(prefix):], "/") {
				continue
			}
			out = append(out, deletedMetadata(dl, display))
		}
	}
	return out, nil
}

// Read returns the content and metadata of the file at p.
func (s *Store) Read(p string) ([]byte, *files.FileMetadata, error) {
	_, lower, err := cleanPath(p, false)
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[lower]
	if !ok {
		return nil, nil, lookupErr("not_found")
	}
	if n.folder {
		return nil, nil, lookupErr("not_file")
	}
	data, err := afero.ReadFile(s.fs, lower)
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox: read %s: %w", p, err)
	}
	return data, s.metadata(lower, n).(*files.FileMetadata), nil
}

// Delete removes p and everything below it, leaving tombstones behind.
func (s *Store) Delete(p string) (files.Metadata, error) {
	_, lower, err := cleanPath(p, false)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[lower]
	if !ok {
		return nil, lookupErr("not_found")
	}
	meta := s.metadata(lower, n)
	if err := s.fs.RemoveAll(lower); err != nil {
		return nil, fmt.Errorf("sandbox: delete %s: %w", p, err)
	}
	for key, child := range s.nodes {
		if key == lower || strings.HasPrefix(key, lower+"/") {
			s.deleted[key] = child.display
			delete(s.nodes, key)
		}
	}
	s.bump()
	return meta, nil
}

func newID() string {
	return "id:" + uuid.NewString()
}

// contentHash computes the Dropbox content hash: SHA-256 over the
// concatenated SHA-256 digests of 4 MiB blocks.
func contentHash(data []byte) string {
	outer := sha256.New()
	for start := 0; start < len(data); start += contentHashBlock {
		end := min(start+contentHashBlock, len(data))
		block := sha256.Sum256(data[start:end])
		outer.Write(block[:])
	}
	return hex.EncodeToString(outer.Sum(nil))
}
