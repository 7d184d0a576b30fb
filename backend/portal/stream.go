package portal

import (
	"os"
	"sync"
	"sync/atomic"
)

// StreamResource is an open stream descriptor handed out by the broker.
// Only the session that requested it can close it; callers may observe
// the descriptor but never take ownership.
type StreamResource struct {
	file   *os.File
	once   sync.Once
	closed atomic.Bool
}

func newStreamResource(f *os.File) *StreamResource {
	return &StreamResource{file: f}
}

// Fd returns the descriptor, or -1 once closed.
func (s *StreamResource) Fd() int {
	if s == nil || s.closed.Load() {
		return -1
	}
	return int(s.file.Fd())
}

func (s *StreamResource) Name() string {
	if s == nil {
		return ""
	}
	return s.file.Name()
}

func (s *StreamResource) Closed() bool {
	return s == nil || s.closed.Load()
}

// close releases the descriptor. Closing twice is a no-op.
func (s *StreamResource) close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.file.Close()
	})
	return err
}
