package build

import "github.com/shirokudogi/Radio-Transient-Search/internal/conf"

// WriteRunParameters populates store with every key the later pipeline
// stages expect under the Raw Data, Reduced DFT Data, and Run sections.
// Only rank 0 calls this.
func (p *Params) WriteRunParameters(store paramstoreWriter, label string, fileSizeBytes int64) {
	store.Set(conf.SectionRawData, "samplerate", p.SampleRate)
	store.Set(conf.SectionRawData, "frametime", p.FrameTime)
	store.Set(conf.SectionRawData, "numsamplesperframe", 4096)
	store.Set(conf.SectionRawData, "numframespertune", p.NumFramesPerTune)
	store.Set(conf.SectionRawData, "tuningfreq0", p.TuningFreq0)
	store.Set(conf.SectionRawData, "tuningfreq1", p.TuningFreq1)
	store.Set(conf.SectionRawData, "beam", p.Beam)
	store.Set(conf.SectionRawData, "datautilfrac", p.UtilizationFrac)
	store.Set(conf.SectionRawData, "filesize", fileSizeBytes)

	store.Set(conf.SectionReducedDFT, "dftlength", p.DFTLength)
	store.Set(conf.SectionReducedDFT, "integrationtime", p.IntegrationTime)
	store.Set(conf.SectionReducedDFT, "numspectrogramlines", p.NumLines)
	store.Set(conf.SectionReducedDFT, "numdftsperspectrogramline", p.NumDFTsPerLine)
	store.Set(conf.SectionReducedDFT, "numspectrogramlinespertile", p.LinesPerTile)
	store.Set(conf.SectionReducedDFT, "enablehannwindow", p.EnableHann)

	store.Set(conf.SectionRun, "label", label)
	store.Set(conf.SectionRun, "workers", p.Workers)
}

// paramstoreWriter is the minimal interface WriteRunParameters needs,
// satisfied by *paramstore.Store, kept narrow so this package does not need
// to import paramstore just to accept its concrete type in tests.
type paramstoreWriter interface {
	Set(section, key string, value any)
}
