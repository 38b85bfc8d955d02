package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// DefaultChunkSize bounds how much is copied between progress reports.
const DefaultChunkSize = 1 << 20

// ErrTooManyResumes is returned when Policy.MaxResumes is exceeded.
var ErrTooManyResumes = errors.New("download: too many resumes")

// Source opens a byte stream starting at offset. contentLength, when known, is
// the number of bytes the stream will deliver from offset onwards.
type Source interface {
	Open(ctx context.Context, offset uint64) (body io.ReadCloser, contentLength *uint64, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, offset uint64) (io.ReadCloser, *uint64, error)

// Open implements Source.
func (f SourceFunc) Open(ctx context.Context, offset uint64) (io.ReadCloser, *uint64, error) {
	return f(ctx, offset)
}

// Progress is called after every chunk with the number of bytes written so
// far, counted from offset zero, and the total size when known.
type Progress func(done uint64, total *uint64)

// Policy tunes the resume loop.
type Policy struct {
	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int64
	// MaxResumes caps the number of reopen attempts. Zero means unlimited.
	MaxResumes int
	// Backoff paces reopen attempts after a stream that failed without
	// delivering any bytes. A stream that made progress is reopened at once
	// and resets the backoff. Nil means an exponential backoff from
	// 100ms up to 5s that never gives up.
	Backoff backoff.BackOff
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithPolicy replaces the resume policy.
func WithPolicy(p Policy) Option {
	return func(d *Downloader) {
		d.policy = p
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn Progress) Option {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// WithLogger sets the logger used to report resumes.
func WithLogger(logger hclog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Downloader copies a Source to a writer, reopening the source at the current
// offset whenever reading fails.
type Downloader struct {
	source   Source
	policy   Policy
	progress Progress
	logger   hclog.Logger
}

// New constructs a Downloader over source.
func New(source Source, opts ...Option) *Downloader {
	d := &Downloader{
		source: source,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.policy.ChunkSize <= 0 {
		d.policy.ChunkSize = DefaultChunkSize
	}
	return d
}

// Run copies the source to w starting at offset zero.
func (d *Downloader) Run(ctx context.Context, w io.Writer) (uint64, error) {
	return d.RunFrom(ctx, w, 0)
}

// RunFrom copies the source to w starting at offset and returns the offset
// reached. Errors from Open and from w end the download; read errors reopen
// the source at the offset reached so far.
func (d *Downloader) RunFrom(ctx context.Context, w io.Writer, offset uint64) (uint64, error) {
	if d.source == nil {
		return offset, errors.New("download: source is nil")
	}
	bo := d.policy.Backoff
	if bo == nil {
		bo = defaultBackOff()
	}
	bo = backoff.WithContext(bo, ctx)
	bo.Reset()

	bytesOut := offset
	body, length, err := d.source.Open(ctx, bytesOut)
	if err != nil {
		return bytesOut, fmt.Errorf("download: open at %d: %w", bytesOut, err)
	}
	var total *uint64
	if length != nil {
		t := offset + *length
		total = &t
	}

	resumes := 0
	var sinceOpen int64
	for {
		n, readErr, writeErr := d.copyChunk(w, body)
		bytesOut += uint64(n)
		sinceOpen += n
		if n > 0 && d.progress != nil {
			d.progress(bytesOut, total)
		}
		switch {
		case writeErr != nil:
			body.Close()
			return bytesOut, fmt.Errorf("download: write at %d: %w", bytesOut, writeErr)
		case readErr == nil && n == d.policy.ChunkSize:
			continue
		case readErr == nil:
			body.Close()
			return bytesOut, nil
		}

		body.Close()
		resumes++
		if d.policy.MaxResumes > 0 && resumes > d.policy.MaxResumes {
			return bytesOut, fmt.Errorf("%w: %d attempts, last error: %v", ErrTooManyResumes, d.policy.MaxResumes, readErr)
		}
		d.logger.Warn("resuming download", "offset", bytesOut, "attempt", resumes, "error", readErr)
		if sinceOpen > 0 {
			bo.Reset()
			if err := ctx.Err(); err != nil {
				return bytesOut, err
			}
		} else if err := d.wait(ctx, bo); err != nil {
			return bytesOut, err
		}
		sinceOpen = 0
		body, _, err = d.source.Open(ctx, bytesOut)
		if err != nil {
			return bytesOut, fmt.Errorf("download: reopen at %d: %w", bytesOut, err)
		}
	}
}

func (d *Downloader) wait(ctx context.Context, bo backoff.BackOff) error {
	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: backoff exhausted", ErrTooManyResumes)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// copyChunk copies up to one chunk and tells read failures apart from write
// failures. A clean end of stream is reported as a short chunk with no error.
func (d *Downloader) copyChunk(w io.Writer, body io.Reader) (n int64, readErr, writeErr error) {
	src := &trackingReader{r: body}
	n, err := io.CopyN(w, src, d.policy.ChunkSize)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return n, nil, nil
	case src.err != nil && errors.Is(err, src.err):
		return n, err, nil
	default:
		return n, nil, err
	}
}

// trackingReader remembers the last non-EOF read error.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
