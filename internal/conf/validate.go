package conf

import (
	"fmt"

	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// ClampOdd rounds w up to the next odd integer, warning the given rank if a
// correction was necessary.
func ClampOdd(rank int, name string, w int) int {
	if w%2 == 0 {
		logging.Warning(rank, fmt.Sprintf("%s window size %d is even, rounding up to %d", name, w, w+1))
		return w + 1
	}
	return w
}

// ClampUtilizationFrac forces an out-of-range data-utilization fraction to
// 1.0, warning the given rank. u == 0 or |u| > 1 is out of range.
func ClampUtilizationFrac(rank int, u float64) float64 {
	if u == 0 || u > 1 || u < -1 {
		logging.Warning(rank, fmt.Sprintf("data-utilization fraction %g out of (-1,0)u(0,1], forcing to 1.0", u))
		return 1.0
	}
	return u
}

// ValidateFFTWindow enforces that the upper FFT index is strictly greater
// than the lower FFT index; violating this is fatal.
func ValidateFFTWindow(lower, upper int) error {
	if upper <= lower {
		return xerrors.Newf("upper FFT index %d must be greater than lower FFT index %d", upper, lower).
			Category(xerrors.CategoryParameter).
			Component("conf").
			Err()
	}
	return nil
}

// ValidateDMRange enforces that the DM grid end is strictly greater than its
// start; violating this is fatal.
func ValidateDMRange(start, end float64) error {
	if end <= start {
		return xerrors.Newf("DM end %g must be greater than DM start %g", end, start).
			Category(xerrors.CategoryParameter).
			Component("conf").
			Err()
	}
	return nil
}

// Validate applies every parameter-validity rule from the error-handling
// design to s, mutating in place the fields that are silently corrected and
// returning an error for the fatal ones.
func Validate(rank int, s *Settings) error {
	s.RFIFilter.BandpassWindow = ClampOdd(rank, "bandpass", s.RFIFilter.BandpassWindow)
	s.RFIFilter.BaselineWindow = ClampOdd(rank, "baseline", s.RFIFilter.BaselineWindow)
	s.Build.UtilizationFrac = ClampUtilizationFrac(rank, s.Build.UtilizationFrac)

	if err := ValidateFFTWindow(s.RFIFilter.LowerFFTIndex0, s.RFIFilter.UpperFFTIndex0); err != nil {
		return err
	}
	if err := ValidateFFTWindow(s.RFIFilter.LowerFFTIndex1, s.RFIFilter.UpperFFTIndex1); err != nil {
		return err
	}
	if err := ValidateDMRange(s.Dedisperse.DMStart, s.Dedisperse.DMEnd); err != nil {
		return err
	}
	return nil
}
