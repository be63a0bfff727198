package worker

import (
	"os"
	"sync"
)

// SharedAppender is a shared output-file handle: every Append is atomic
// with respect to other ranks appending concurrently.
type SharedAppender struct {
	mu   sync.Mutex
	file *os.File
}

// OpenShared opens (creating if necessary) a file for atomic, serialized
// appends from any rank.
func OpenShared(path string) (*SharedAppender, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &SharedAppender{file: f}, nil
}

// Append writes s atomically to the end of the shared file.
func (s *SharedAppender) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteString(line)
	return err
}

// Close closes the underlying file.
func (s *SharedAppender) Close() error {
	return s.file.Close()
}
