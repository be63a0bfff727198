package paramstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set("Raw Data", "samplerate", 19600000.0)
	s.Set("Raw Data", "beam", 1)
	s.Set("Reduced DFT Data", "enablehann", true)

	v, err := s.GetFloat("Raw Data", "samplerate")
	require.NoError(t, err)
	require.Equal(t, 19600000.0, v)

	i, err := s.GetInt("Raw Data", "beam")
	require.NoError(t, err)
	require.Equal(t, 1, i)

	b, err := s.GetBool("Reduced DFT Data", "enablehann")
	require.NoError(t, err)
	require.True(t, b)
}

func TestGetMissingKeyErrors(t *testing.T) {
	s := New()
	_, err := s.GetFloat("Raw Data", "missing")
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	s.Set("Raw Data", "beam", 2)
	s.Set("Raw Data", "samplerate", 19600000.5)
	s.Set("Run", "label", "test-run")

	path := filepath.Join(t.TempDir(), "params.ini")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.HasSection("Raw Data"))

	beam, err := loaded.GetInt("Raw Data", "beam")
	require.NoError(t, err)
	require.Equal(t, 2, beam)

	label, ok := loaded.GetString("Run", "label")
	require.True(t, ok)
	require.Equal(t, "test-run", label)
}

func TestSectionNamesSorted(t *testing.T) {
	s := New()
	s.Set("Zed", "a", 1)
	s.Set("Alpha", "b", 2)
	require.Equal(t, []string{"Alpha", "Zed"}, s.SectionNames())
}

func TestGetIntTruncatesFloatRepresentation(t *testing.T) {
	s := New()
	s.Set("Reduced DFT Data", "numlines", 100.0)
	i, err := s.GetInt("Reduced DFT Data", "numlines")
	require.NoError(t, err)
	require.Equal(t, 100, i)
}
