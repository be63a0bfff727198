package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCommRunJoinsAllRanks(t *testing.T) {
	comm := New(4)
	var seen int32
	err := comm.Run(context.Background(), func(ctx context.Context, rank int) error {
		atomic.AddInt32(&seen, 1)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, seen)
}

func TestCommRunPropagatesFirstError(t *testing.T) {
	comm := New(4)
	wantErr := errors.New("rank failed")
	err := comm.Run(context.Background(), func(ctx context.Context, rank int) error {
		if rank == 2 {
			return wantErr
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
}

func TestNewClampsSizeToOne(t *testing.T) {
	comm := New(0)
	require.Equal(t, 1, comm.Size)
}

func TestBarrierReleasesAllParticipants(t *testing.T) {
	const n = 8
	b := NewBarrier(n)
	comm := New(n)
	var before, after int32
	err := comm.Run(context.Background(), func(ctx context.Context, rank int) error {
		atomic.AddInt32(&before, 1)
		b.Wait()
		atomic.AddInt32(&after, 1)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, n, before)
	require.EqualValues(t, n, after)
}

func TestPartitionRankZeroAbsorbsResidue(t *testing.T) {
	sizes, offsets := Partition(10, 3)
	require.Equal(t, []int{4, 3, 3}, sizes)
	require.Equal(t, []int{0, 4, 7}, offsets)

	total := 0
	for _, s := range sizes {
		total += s
	}
	require.Equal(t, 10, total)
}

func TestPartitionSingleRankTakesEverything(t *testing.T) {
	sizes, offsets := Partition(10, 1)
	require.Equal(t, []int{10}, sizes)
	require.Equal(t, []int{0}, offsets)
}

func TestScatterGatherRoundTrip(t *testing.T) {
	const rowLen = 2
	full := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	sizes, offsets := Partition(5, 2)

	dst := make([]float32, len(full))
	for rank := 0; rank < 2; rank++ {
		seg := ScatterRowsF32(full, rowLen, sizes, offsets, rank)
		GatherRowsF32(dst, seg, rowLen, offsets, rank)
	}
	require.Equal(t, full, dst)
}

func TestReducerAllreduceSumAcrossRanks(t *testing.T) {
	const n = 4
	const length = 3
	reducer := NewReducer(n, length)
	comm := New(n)

	results := make([][]float32, n)
	err := comm.Run(context.Background(), func(ctx context.Context, rank int) error {
		local := []float32{1, 2, 3}
		results[rank] = reducer.AllreduceSum(local)
		return nil
	})
	require.NoError(t, err)

	for _, r := range results {
		require.Equal(t, []float32{4, 8, 12}, r)
	}
}

func TestReducerResetZeroesBuffer(t *testing.T) {
	reducer := NewReducer(1, 2)
	_ = reducer.AllreduceSum([]float32{5, 5})
	reducer.Reset()
	out := reducer.AllreduceSum([]float32{1, 1})
	require.Equal(t, []float32{1, 1}, out)
}

func TestSharedAppenderSerializesConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.txt")
	appender, err := OpenShared(path)
	require.NoError(t, err)

	comm := New(8)
	err = comm.Run(context.Background(), func(ctx context.Context, rank int) error {
		return appender.Append("line\n")
	})
	require.NoError(t, err)
	require.NoError(t, appender.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 8, strings.Count(string(data), "\n"))
}
