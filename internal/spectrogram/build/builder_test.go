package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shirokudogi/Radio-Transient-Search/internal/npyio"
)

func TestRunEmptyRecordingYieldsOneZeroLine(t *testing.T) {
	dir := t.TempDir()
	drxPath := filepath.Join(dir, "empty.drx")
	require.NoError(t, os.WriteFile(drxPath, nil, 0o644))

	p, err := Derive(drxPath, 0.1, 100, 1.0, 1, false, "")
	require.NoError(t, err)
	require.Equal(t, 1, p.NumLines)

	require.NoError(t, Run(context.Background(), p, dir, dir, nil, nil, 0))

	for tune := 0; tune < 2; tune++ {
		rows, cols, data, err := npyio.ReadFloat32Matrix(filepath.Join(dir, TileFilename(0, tune, 0, "")))
		require.NoError(t, err)
		require.Equal(t, 1, rows)
		require.Equal(t, p.DFTLength, cols)
		for _, v := range data {
			require.Zero(t, v)
		}
	}
}

func TestDeriveCapsWorkersAtOneLineEach(t *testing.T) {
	dir := t.TempDir()
	drxPath := filepath.Join(dir, "empty.drx")
	require.NoError(t, os.WriteFile(drxPath, nil, 0o644))

	p, err := Derive(drxPath, 0.1, 100, 1.0, 8, false, "")
	require.NoError(t, err)
	require.Equal(t, p.NumLines, p.Workers)
	require.GreaterOrEqual(t, p.ResidueLines, 0)
}
