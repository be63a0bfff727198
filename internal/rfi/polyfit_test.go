package rfi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolyFitRecoversLinearData(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9} // y = 2x + 1
	coeffs := polyFit(x, y, 1)
	require.Len(t, coeffs, 2)
	require.InDelta(t, 2.0, coeffs[0], 1e-6)
	require.InDelta(t, 1.0, coeffs[1], 1e-6)
}

func TestPolyEvalMatchesHornerScheme(t *testing.T) {
	coeffs := []float64{2, 1} // 2x + 1
	require.InDelta(t, 5.0, polyEval(coeffs, 2), 1e-9)
	require.InDelta(t, 1.0, polyEval(coeffs, 0), 1e-9)
}

func TestSolveLinearIdentity(t *testing.T) {
	a := [][]float64{{1, 0}, {0, 1}}
	b := []float64{3, 4}
	x, err := solveLinear(a, b)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{3, 4}, x, 1e-9)
}

func TestSolveLinearSingularReturnsError(t *testing.T) {
	a := [][]float64{{1, 2}, {2, 4}}
	b := []float64{1, 2}
	_, err := solveLinear(a, b)
	require.Error(t, err)
}

func TestPolyFitFallsBackToMeanWhenDegenerate(t *testing.T) {
	x := []float64{0, 0, 0}
	y := []float64{5, 5, 5}
	coeffs := polyFit(x, y, 2)
	require.Len(t, coeffs, 3)
	require.InDelta(t, 5.0, coeffs[2], 1e-9)
}
