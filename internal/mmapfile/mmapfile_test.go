package mmapfile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateWriteFlushReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.dat")

	m, err := CreateFloat32(path, 6)
	require.NoError(t, err)
	for i := range m.View {
		m.View[i] = float32(i) * 2
	}
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	reopened, err := OpenFloat32(path, 6)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, []float32{0, 2, 4, 6, 8, 10}, reopened.View)
}

func TestPathReturnsBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.dat")
	m, err := CreateFloat32(path, 4)
	require.NoError(t, err)
	defer m.Close()
	require.Equal(t, path, m.Path())
}

func TestTempPathIncludesPrefixAndIsUnique(t *testing.T) {
	a := TempPath("/tmp", "bcast")
	b := TempPath("/tmp", "bcast")
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "/tmp/bcast-"))
	require.True(t, strings.HasSuffix(a, ".dtmp"))
}

func TestCreateFloat32ZeroLengthDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dat")
	m, err := CreateFloat32(path, 0)
	require.NoError(t, err)
	defer m.Close()
	require.Len(t, m.View, 0)
}
