package build

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/drx"
	"github.com/shirokudogi/Radio-Transient-Search/internal/inject"
	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
	"github.com/shirokudogi/Radio-Transient-Search/internal/npyio"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Run executes the Spectrogram Builder across p.Workers goroutines, each
// reading its own contiguous region of the DRX file and writing its own
// sequence of tile files under workDir. The injection matrices, built on
// rank 0, are first replicated to every rank through the size-tiered
// broadcast: in memory below conf.MaxInMemoryBroadcastBytes, through
// per-rank memory-mapped temp files under tmpDir otherwise.
func Run(ctx context.Context, p *Params, workDir, tmpDir string, injSpect0, injSpect1 *inject.CSR, fileSizeBytes int64) error {
	logging.Info(0, fmt.Sprintf("spectrogram build: cpu=%s features=avx2:%v avx512:%v", cpuid.CPU.BrandName, cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.AVX512F)))

	bcast0, err := inject.BroadcastCSR(injSpect0, p.Workers, tmpDir, conf.MaxInMemoryBroadcastBytes)
	if err != nil {
		return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
	}
	defer bcast0.Close()
	bcast1, err := inject.BroadcastCSR(injSpect1, p.Workers, tmpDir, conf.MaxInMemoryBroadcastBytes)
	if err != nil {
		return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
	}
	defer bcast1.Close()

	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < p.Workers; rank++ {
		rank := rank
		g.Go(func() error {
			return runWorker(gctx, p, workDir, rank, bcast0.Replicas[rank], bcast1.Replicas[rank], fileSizeBytes)
		})
	}
	return g.Wait()
}

// writeZeroLineTiles emits a single all-zero line for both tunings, so that
// a recording with no complete frame group still yields a well-formed one
// line spectrogram downstream instead of no tiles at all.
func writeZeroLineTiles(p *Params, workDir string) error {
	zero := make([]float32, p.DFTLength)
	for tune := 0; tune < 2; tune++ {
		path := filepath.Join(workDir, TileFilename(0, tune, p.Beam, p.Label))
		if err := npyio.WriteFloat32Matrix(path, 1, p.DFTLength, zero); err != nil {
			return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
		}
	}
	return nil
}

func runWorker(ctx context.Context, p *Params, workDir string, rank int, injSpect0, injSpect1 *inject.CSR, fileSizeBytes int64) error {
	var win []float64
	if p.EnableHann {
		win = hannWindow(p.DFTLength)
	}

	for q := 0; ; q++ {
		offset := p.ByteOffset(rank, q)
		end := p.EndOffset(fileSizeBytes)
		if offset >= end {
			if rank == 0 && q == 0 {
				return writeZeroLineTiles(p, workDir)
			}
			return nil
		}

		lineOffset := p.LineOffset(rank, q)
		wantLines := p.TileLines(rank, q)

		reader, err := drx.OpenAt(p.DRXPath, offset)
		if err != nil {
			return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
		}

		tile0 := make([]float32, wantLines*p.DFTLength)
		tile1 := make([]float32, wantLines*p.DFTLength)
		actualLines := 0

		for i := 0; i < wantLines; i++ {
			select {
			case <-ctx.Done():
				reader.Close()
				return ctx.Err()
			default:
			}

			power0 := make([]float64, p.DFTLength)
			power1 := make([]float64, p.DFTLength)
			truncated := false

			for j := 0; j < p.NumDFTsPerLine; j++ {
				k := 0
				for k < 4 {
					frame, ferr := reader.Next()
					if ferr != nil {
						if _, ok := ferr.(*drx.ErrSync); ok {
							continue
						}
						if ferr == io.EOF {
							truncated = true
							break
						}
						reader.Close()
						return xerrors.New(ferr).Category(xerrors.CategoryFormat).Component("spectrogram/build").Err()
					}
					accumulatePower(frame, win, power0, power1)
					k++
				}
				if truncated {
					break
				}

				if injSpect0 != nil || injSpect1 != nil {
					g := lineOffset*p.NumDFTsPerLine + i*p.NumDFTsPerLine + j
					addInjectionRow(power0, injSpect0, g)
					addInjectionRow(power1, injSpect1, g)
				}
			}

			if truncated {
				break
			}

			norm := 4.0 * float64(p.DFTLength) * float64(p.NumDFTsPerLine)
			for c := 0; c < p.DFTLength; c++ {
				tile0[i*p.DFTLength+c] = float32(power0[c] / norm)
				tile1[i*p.DFTLength+c] = float32(power1[c] / norm)
			}
			actualLines++
		}
		reader.Close()

		if actualLines < wantLines {
			tile0 = tile0[:actualLines*p.DFTLength]
			tile1 = tile1[:actualLines*p.DFTLength]
		}

		if actualLines == 0 && rank == 0 && q == 0 {
			return writeZeroLineTiles(p, workDir)
		}

		if actualLines > 0 {
			path0 := filepath.Join(workDir, TileFilename(lineOffset, 0, p.Beam, p.Label))
			path1 := filepath.Join(workDir, TileFilename(lineOffset, 1, p.Beam, p.Label))
			if err := npyio.WriteFloat32Matrix(path0, actualLines, p.DFTLength, tile0); err != nil {
				return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
			}
			if err := npyio.WriteFloat32Matrix(path1, actualLines, p.DFTLength, tile1); err != nil {
				return xerrors.New(err).Category(xerrors.CategoryIO).Component("spectrogram/build").Err()
			}
			logging.Info(rank, fmt.Sprintf("wrote tile lineOffset=%d lines=%d", lineOffset, actualLines))
		}

		if actualLines < wantLines {
			return nil
		}
	}
}

func accumulatePower(frame *drx.Frame, win []float64, power0, power1 []float64) {
	n := len(frame.Samples)
	td := make([]complex128, n)
	for i, s := range frame.Samples {
		v := complex(float64(real(s)), float64(imag(s)))
		if win != nil {
			v *= complex(win[i], 0)
		}
		td[i] = v
	}
	fftRadix2(td)
	shifted := fftshift(td)

	dst := power0
	if frame.Tune != 0 {
		dst = power1
	}
	for i, v := range shifted {
		dst[i] += real(v)*real(v) + imag(v)*imag(v)
	}
}

func addInjectionRow(power []float64, csr *inject.CSR, row int) {
	if csr == nil || row < 0 || row >= csr.NumRows {
		return
	}
	for idx := csr.Indptr[row]; idx < csr.Indptr[row+1]; idx++ {
		col := csr.Indices[idx]
		power[col] += float64(csr.Data[idx])
	}
}
