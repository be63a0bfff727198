package inject

import (
	"github.com/shirokudogi/Radio-Transient-Search/internal/worker"
)

// CSRBcast holds one replica of the injection matrix per worker rank, plus
// the mmap temp files backing any array too large for an in-memory copy.
type CSRBcast struct {
	Replicas []*CSR
	closers  []interface{ Close() error }
}

// BroadcastCSR replicates a rank-0 CSR to size ranks: the shape and nnz
// metadata travel by value, then each of the three arrays is broadcast
// independently through worker's size-tiered broadcast, in memory below
// maxInMemory bytes and through a per-rank memory-mapped temp file under
// tmpDir otherwise. A nil csr yields a nil replica on every rank.
func BroadcastCSR(csr *CSR, size int, tmpDir string, maxInMemory int) (*CSRBcast, error) {
	b := &CSRBcast{Replicas: make([]*CSR, size)}
	if csr == nil {
		return b, nil
	}

	indptr, err := worker.BroadcastI32(csr.Indptr, size, tmpDir, maxInMemory)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, indptr)

	indices, err := worker.BroadcastI32(csr.Indices, size, tmpDir, maxInMemory)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, indices)

	data, err := worker.BroadcastF32(csr.Data, size, tmpDir, maxInMemory)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, data)

	for r := 0; r < size; r++ {
		b.Replicas[r] = &CSR{
			Indptr:  indptr.Replicas[r],
			Indices: indices.Replicas[r],
			Data:    data.Replicas[r],
			NumRows: csr.NumRows,
			NumCols: csr.NumCols,
		}
	}
	return b, nil
}

// Close releases every mmap-backed replica array and deletes its temp file.
func (b *CSRBcast) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
