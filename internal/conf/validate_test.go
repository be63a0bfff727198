package conf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampOddRoundsEvenUp(t *testing.T) {
	require.Equal(t, 15, ClampOdd(0, "bandpass", 15))
	require.Equal(t, 17, ClampOdd(0, "bandpass", 16))
}

func TestClampUtilizationFracForcesOutOfRangeToOne(t *testing.T) {
	require.Equal(t, 0.5, ClampUtilizationFrac(0, 0.5))
	require.Equal(t, -0.5, ClampUtilizationFrac(0, -0.5))
	require.Equal(t, 1.0, ClampUtilizationFrac(0, 0))
	require.Equal(t, 1.0, ClampUtilizationFrac(0, 1.5))
	require.Equal(t, 1.0, ClampUtilizationFrac(0, -1.5))
}

func TestValidateFFTWindowRejectsNonIncreasing(t *testing.T) {
	require.NoError(t, ValidateFFTWindow(0, 100))
	require.Error(t, ValidateFFTWindow(100, 100))
	require.Error(t, ValidateFFTWindow(100, 50))
}

func TestValidateDMRangeRejectsNonIncreasing(t *testing.T) {
	require.NoError(t, ValidateDMRange(0, 100))
	require.Error(t, ValidateDMRange(100, 100))
	require.Error(t, ValidateDMRange(100, 50))
}

func TestValidateAppliesAllRules(t *testing.T) {
	s := Defaults()
	s.RFIFilter.BandpassWindow = 10
	s.RFIFilter.BaselineWindow = 10
	s.RFIFilter.UpperFFTIndex0 = 100
	s.RFIFilter.UpperFFTIndex1 = 100
	s.Build.UtilizationFrac = 1.0
	s.Dedisperse.DMStart = 0
	s.Dedisperse.DMEnd = 100

	require.NoError(t, Validate(0, s))
	require.Equal(t, 11, s.RFIFilter.BandpassWindow)
	require.Equal(t, 11, s.RFIFilter.BaselineWindow)
}

func TestClampIntBounds(t *testing.T) {
	require.Equal(t, 1, ClampInt(-5, 1, 10))
	require.Equal(t, 10, ClampInt(50, 1, 10))
	require.Equal(t, 5, ClampInt(5, 1, 10))
}
