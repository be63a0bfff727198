// Package combine implements the Combiner: it concatenates tile files for
// one tuning, in ascending tile-index order, into a single L x N
// memory-mapped matrix file.
package combine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/shirokudogi/Radio-Transient-Search/internal/mmapfile"
	"github.com/shirokudogi/Radio-Transient-Search/internal/npyio"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

var tileNamePattern = regexp.MustCompile(`-S(\d+)-B(\d+)T(\d+)\.npy$`)

// ParseTileIndex extracts the global starting row index encoded in a tile
// filename, e.g. waterfall-S128-B1T0.npy -> 128.
func ParseTileIndex(path string) (tile, beam, tune int, err error) {
	m := tileNamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, 0, 0, fmt.Errorf("combine: %s does not match tile filename pattern", path)
	}
	tile, _ = strconv.Atoi(m[1])
	beam, _ = strconv.Atoi(m[2])
	tune, _ = strconv.Atoi(m[3])
	return tile, beam, tune, nil
}

// SortTiles orders tile file paths by their encoded tile index, the
// ordering the Combiner's concatenation correctness depends on.
func SortTiles(paths []string) ([]string, error) {
	for _, p := range paths {
		if _, _, _, err := ParseTileIndex(p); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Slice(out, func(i, j int) bool {
		ii, _, _, _ := ParseTileIndex(out[i])
		jj, _, _, _ := ParseTileIndex(out[j])
		return ii < jj
	})
	return out, nil
}

// Combine concatenates tilePaths, already sorted by ascending tile index,
// into a single memory-mapped L x N matrix file at outPath, each tile copied
// directly after the previous one. Returns an error if a tile is not
// dftLength wide, if the tiles hold more than numLines rows, or if together
// they hold fewer; the tile index encoded in each filename is not compared
// with the row the tile lands on.
func Combine(tilePaths []string, outPath string, numLines, dftLength int) (*mmapfile.Float32Map, error) {
	combined, err := mmapfile.CreateFloat32(outPath, numLines*dftLength)
	if err != nil {
		return nil, xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/combine").Err()
	}

	begin := 0
	for _, path := range tilePaths {
		rows, cols, data, err := npyio.ReadFloat32Matrix(path)
		if err != nil {
			combined.Close()
			return nil, xerrors.New(err).Category(xerrors.CategoryFormat).Component("spectrogram/combine").Err()
		}
		if cols != dftLength {
			combined.Close()
			return nil, xerrors.Newf("combine: tile %s has width %d, expected %d", path, cols, dftLength).
				Category(xerrors.CategoryFormat).Component("spectrogram/combine").Err()
		}
		end := begin + rows
		if end > numLines {
			combined.Close()
			return nil, xerrors.Newf("combine: tile %s overruns combined matrix (begin=%d end=%d numLines=%d)", path, begin, end, numLines).
				Category(xerrors.CategoryFormat).Component("spectrogram/combine").Err()
		}
		copy(combined.View[begin*dftLength:end*dftLength], data)
		begin = end
	}

	if begin != numLines {
		combined.Close()
		return nil, xerrors.Newf("combine: tiles cover %d of %d expected lines", begin, numLines).
			Category(xerrors.CategoryFormat).Component("spectrogram/combine").Err()
	}

	if err := combined.Flush(); err != nil {
		combined.Close()
		return nil, xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/combine").Err()
	}

	return combined, nil
}

// WriteNPY writes the combined matrix back out as a single .npy file.
func WriteNPY(combined *mmapfile.Float32Map, numLines, dftLength int, outPath string) error {
	if err := npyio.WriteFloat32Matrix(outPath, numLines, dftLength, combined.View); err != nil {
		return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/combine").Err()
	}
	return nil
}

// Decimate averages every ndown consecutive rows of a numLines x dftLength
// row-major matrix, producing the coarse companion spectrogram written for
// quick inspection. Any remainder rows that don't fill a full group are
// dropped.
func Decimate(data []float32, numLines, dftLength, ndown int) (coarse []float32, coarseLines int) {
	if ndown <= 1 {
		out := make([]float32, len(data))
		copy(out, data)
		return out, numLines
	}
	coarseLines = numLines / ndown
	coarse = make([]float32, coarseLines*dftLength)
	for r := 0; r < coarseLines; r++ {
		for c := 0; c < dftLength; c++ {
			var sum float32
			for k := 0; k < ndown; k++ {
				sum += data[(r*ndown+k)*dftLength+c]
			}
			coarse[r*dftLength+c] = sum / float32(ndown)
		}
	}
	return coarse, coarseLines
}
