package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"netmap-server/internal/domain"
	"netmap-server/internal/observability"
)

// Store owns the committed document file and its .tmp/.bak siblings. Reads
// are served from an in-memory copy of the last committed bytes; writes go
// through a single FIFO committer goroutine so file operations never
// interleave. The commit sequence is: write .tmp (synced), copy the current
// file to .bak, rename .tmp over the committed path. A crash at any point
// before the rename leaves the previous committed document intact.
type Store struct {
	path string

	mu      sync.RWMutex
	current []byte

	commits chan *commitRequest
}

type commitRequest struct {
	payload []byte
	reply   chan error
}

// NewStore loads the committed document from path, or starts from the empty
// skeleton when no file exists yet. A leftover .tmp from an interrupted
// write is discarded.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		commits: make(chan *commitRequest, 16),
	}

	// A .tmp here means a write died before its rename; the committed file
	// is still the authoritative version.
	if err := os.Remove(path + ".tmp"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clearing stale temp file: %w", err)
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.current = domain.DefaultDocument()
	case err != nil:
		return nil, fmt.Errorf("read document: %w", err)
	default:
		s.current = raw
	}
	return s, nil
}

// Read returns the last committed document bytes. The returned slice is a
// copy; callers may hold it across commits.
func (s *Store) Read() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.current))
	copy(out, s.current)
	return out
}

// Commit enqueues the payload on the write queue and waits for the result.
func (s *Store) Commit(ctx context.Context, payload []byte) error {
	req := &commitRequest{payload: payload, reply: make(chan error, 1)}

	select {
	case s.commits <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the committer until the context ends, then drains whatever is
// already queued so accepted writes still land before shutdown.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case req := <-s.commits:
					req.reply <- s.commit(req.payload)
				default:
					slog.Info("document committer stopped")
					return ctx.Err()
				}
			}
		case req := <-s.commits:
			req.reply <- s.commit(req.payload)
		}
	}
}

// commit performs one atomic write. Only the committer goroutine calls this,
// so file operations are strictly serialized.
func (s *Store) commit(payload []byte) error {
	tmp := s.path + ".tmp"
	bak := s.path + ".bak"

	if err := writeSync(tmp, payload); err != nil {
		slog.Error("document commit failed writing temp file", slog.String("error", err.Error()))
		return fmt.Errorf("%w: staging write", domain.ErrStorageFailure)
	}

	// Keep the previous committed version reachable as .bak. Failure here is
	// logged but deliberately generic on the wire.
	if err := copyFile(s.path, bak); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("document commit failed writing backup", slog.String("error", err.Error()))
		return fmt.Errorf("%w: backup step", domain.ErrStorageFailure)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		slog.Error("document commit failed renaming temp file", slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit step", domain.ErrStorageFailure)
	}

	s.mu.Lock()
	s.current = payload
	s.mu.Unlock()

	observability.DocumentCommitsTotal.WithLabelValues("ok").Inc()
	observability.DocumentBytes.Set(float64(len(payload)))
	return nil
}

// writeSync writes the payload and fsyncs before closing, so the rename
// that follows never publishes a partially flushed file.
func writeSync(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
