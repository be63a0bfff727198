// Package mmapfile provides memory-mapped file backing for spectrogram
// matrices and large broadcast buffers, for anything too large to
// comfortably hold as a single in-memory allocation.
package mmapfile

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Float32Map is a memory-mapped view of a file as a slice of float32.
type Float32Map struct {
	file *os.File
	data []byte
	View []float32
}

// CreateFloat32 creates (or truncates) a file of exactly n float32 elements
// and maps it read-write.
func CreateFloat32(path string, n int) (*Float32Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: create %s: %w", path, err)
	}
	size := int64(n) * 4
	if size == 0 {
		size = 4
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: truncate %s: %w", path, err)
	}
	return mapFloat32(f, n)
}

// OpenFloat32 maps an existing file of n float32 elements, read-write.
func OpenFloat32(path string, n int) (*Float32Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}
	return mapFloat32(f, n)
}

func mapFloat32(f *os.File, n int) (*Float32Map, error) {
	size := n * 4
	if size == 0 {
		size = 4
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}
	view := unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n)
	return &Float32Map{file: f, data: data, View: view}, nil
}

// Flush synchronizes the mapped pages to disk.
func (m *Float32Map) Flush() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close unmaps and closes the backing file. The backing file is left on
// disk; callers that created a temp mapping are responsible for removal.
func (m *Float32Map) Close() error {
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	return m.file.Close()
}

// Path returns the path of the backing file.
func (m *Float32Map) Path() string {
	return m.file.Name()
}

// TempPath returns a unique temp file path under dir for a per-rank
// memory-mapped broadcast buffer or scratch segment.
func TempPath(dir, prefix string) string {
	return fmt.Sprintf("%s/%s-%s.dtmp", dir, prefix, uuid.NewString())
}

// Int32Map is a memory-mapped view of a file as a slice of int32, used to
// stage the integer index arrays of a broadcast CSR matrix the same way
// Float32Map stages power matrices.
type Int32Map struct {
	file *os.File
	data []byte
	View []int32
}

// CreateInt32 creates (or truncates) a file of exactly n int32 elements and
// maps it read-write.
func CreateInt32(path string, n int) (*Int32Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: create %s: %w", path, err)
	}
	size := int64(n) * 4
	if size == 0 {
		size = 4
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: truncate %s: %w", path, err)
	}
	mapSize := n * 4
	if mapSize == 0 {
		mapSize = 4
	}
	data, err := unix.Mmap(int(f.Fd()), 0, mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}
	view := unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), n)
	return &Int32Map{file: f, data: data, View: view}, nil
}

// Flush synchronizes the mapped pages to disk.
func (m *Int32Map) Flush() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close unmaps and closes the backing file, leaving it on disk.
func (m *Int32Map) Close() error {
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	return m.file.Close()
}

// Path returns the path of the backing file.
func (m *Int32Map) Path() string {
	return m.file.Name()
}
