package worker

import (
	"fmt"
	"os"

	"github.com/shirokudogi/Radio-Transient-Search/internal/mmapfile"
)

// broadcast.go implements the size-tiered broadcast of the pipeline's
// resource model: a buffer below maxInMemory bytes is replicated to every
// rank as a plain in-memory copy; at or above the threshold each non-root
// rank's replica is backed by its own memory-mapped temp file under tmpDir,
// removed again on Close. Rank 0's replica always aliases the root buffer.

// BcastF32 holds the per-rank replicas of one broadcast float32 buffer.
type BcastF32 struct {
	Replicas [][]float32
	maps     []*mmapfile.Float32Map
}

// BroadcastF32 replicates root to size ranks.
func BroadcastF32(root []float32, size int, tmpDir string, maxInMemory int) (*BcastF32, error) {
	b := &BcastF32{Replicas: make([][]float32, size)}
	b.Replicas[0] = root
	if 4*len(root) < maxInMemory {
		for r := 1; r < size; r++ {
			rep := make([]float32, len(root))
			copy(rep, root)
			b.Replicas[r] = rep
		}
		return b, nil
	}
	for r := 1; r < size; r++ {
		m, err := mmapfile.CreateFloat32(mmapfile.TempPath(tmpDir, fmt.Sprintf("bcast-f32-r%d", r)), len(root))
		if err != nil {
			b.Close()
			return nil, err
		}
		copy(m.View, root)
		b.maps = append(b.maps, m)
		b.Replicas[r] = m.View
	}
	return b, nil
}

// Close unmaps every mmap-backed replica and deletes its temp file.
func (b *BcastF32) Close() error {
	var first error
	for _, m := range b.maps {
		path := m.Path()
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
		if err := os.Remove(path); err != nil && first == nil {
			first = err
		}
	}
	b.maps = nil
	return first
}

// BcastI32 holds the per-rank replicas of one broadcast int32 buffer.
type BcastI32 struct {
	Replicas [][]int32
	maps     []*mmapfile.Int32Map
}

// BroadcastI32 replicates root to size ranks.
func BroadcastI32(root []int32, size int, tmpDir string, maxInMemory int) (*BcastI32, error) {
	b := &BcastI32{Replicas: make([][]int32, size)}
	b.Replicas[0] = root
	if 4*len(root) < maxInMemory {
		for r := 1; r < size; r++ {
			rep := make([]int32, len(root))
			copy(rep, root)
			b.Replicas[r] = rep
		}
		return b, nil
	}
	for r := 1; r < size; r++ {
		m, err := mmapfile.CreateInt32(mmapfile.TempPath(tmpDir, fmt.Sprintf("bcast-i32-r%d", r)), len(root))
		if err != nil {
			b.Close()
			return nil, err
		}
		copy(m.View, root)
		b.maps = append(b.maps, m)
		b.Replicas[r] = m.View
	}
	return b, nil
}

// Close unmaps every mmap-backed replica and deletes its temp file.
func (b *BcastI32) Close() error {
	var first error
	for _, m := range b.maps {
		path := m.Path()
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
		if err := os.Remove(path); err != nil && first == nil {
			first = err
		}
	}
	b.maps = nil
	return first
}
