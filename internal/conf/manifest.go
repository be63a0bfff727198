package conf

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestRecord is one stage's provenance entry: what produced a given
// spectrogram or event file, recoverable without re-deriving it from shell
// history.
type ManifestRecord struct {
	Label    string        `yaml:"label"`
	Stage    string        `yaml:"stage"`
	Host     string        `yaml:"host"`
	Start    time.Time     `yaml:"start"`
	Duration time.Duration `yaml:"duration"`
}

// Manifest is the ordered sequence of stage runs recorded for one working
// directory.
type Manifest struct {
	Records []ManifestRecord `yaml:"records"`
}

// LoadManifest reads path, returning an empty Manifest if it does not yet
// exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Append records one stage invocation.
func (m *Manifest) Append(label, stage, host string, start time.Time, duration time.Duration) {
	m.Records = append(m.Records, ManifestRecord{
		Label:    label,
		Stage:    stage,
		Host:     host,
		Start:    start,
		Duration: duration,
	})
}

// Save writes the manifest to path as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RecordManifest loads, appends to, and saves the manifest.yaml under
// workDir in one step; every stage subcommand calls this right before
// exiting cleanly.
func RecordManifest(workDir, label, stage string, start time.Time) error {
	path := filepath.Join(workDir, "manifest.yaml")
	m, err := LoadManifest(path)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	m.Append(label, stage, host, start, time.Since(start))
	return m.Save(path)
}

// ClampInt clamps v into [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
