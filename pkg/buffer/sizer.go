package buffer

import (
	"log/slog"

	"github.com/rhuss/strom/pkg/observability"
)

// Defaults for the dynamic buffer.
const (
	DefaultSize      = 8192
	DefaultMin       = 4096
	DefaultMaxFactor = 2
	DefaultMax       = 65536 * DefaultMaxFactor
	DefaultGrowth    = 1.25
	DefaultShrink    = 0.8
	DefaultWindow    = 5
)

// Config holds the sizing parameters.
type Config struct {
	// Default is the initial size when the archive cannot answer.
	Default int

	Min    int
	Max    int
	Growth float64
	Shrink float64
	Window int
}

// DefaultConfig returns the built-in sizing parameters.
func DefaultConfig() Config {
	return Config{
		Default: DefaultSize,
		Min:     DefaultMin,
		Max:     DefaultMax,
		Growth:  DefaultGrowth,
		Shrink:  DefaultShrink,
		Window:  DefaultWindow,
	}
}

// Sizer answers initial capacity questions and creates per-connection
// states. The archive is optional and shared read-only.
type Sizer struct {
	cfg     Config
	archive *Archive
}

// NewSizer creates a Sizer. A nil archive disables learned sizing.
func NewSizer(cfg Config, archive *Archive) *Sizer {
	d := DefaultConfig()
	if cfg.Default <= 0 {
		cfg.Default = d.Default
	}
	if cfg.Min <= 0 {
		cfg.Min = d.Min
	}
	if cfg.Max <= 0 {
		cfg.Max = d.Max
	}
	cfg.Max = max(cfg.Max, cfg.Min)
	if cfg.Growth <= 1 {
		cfg.Growth = d.Growth
	}
	if cfg.Shrink <= 0 || cfg.Shrink >= 1 {
		cfg.Shrink = d.Shrink
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	return &Sizer{cfg: cfg, archive: archive}
}

// NewSizerFromFile loads the archive at path and builds a Sizer. A missing
// or invalid archive is logged and learned sizing is disabled; it never
// fails.
func NewSizerFromFile(cfg Config, path string) *Sizer {
	if path == "" {
		observability.ArchiveLoaded.Set(0)
		return NewSizer(cfg, nil)
	}
	archive, err := LoadArchive(path)
	if err != nil {
		slog.Warn("buffer archive unavailable, using dynamic sizing only",
			"path", path,
			"error", err,
		)
		observability.ArchiveLoaded.Set(0)
		return NewSizer(cfg, nil)
	}
	slog.Info("loaded buffer archive",
		"path", path,
		"entries", archive.Len(),
		"resolution", archive.Resolution(),
	)
	observability.ArchiveLoaded.Set(1)
	return NewSizer(cfg, archive)
}

// Config returns the effective configuration.
func (s *Sizer) Config() Config {
	return s.cfg
}

// Archive returns the learned archive, or nil.
func (s *Sizer) Archive() *Archive {
	return s.archive
}

// Resolution returns the descriptor resolution to quantize features with.
func (s *Sizer) Resolution() int {
	if s.archive != nil {
		return s.archive.Resolution()
	}
	return DefaultResolution
}

// Descriptor quantizes request features for this sizer's archive.
func (s *Sizer) Descriptor(f Features) Descriptor {
	return DescriptorFor(f, s.Resolution())
}

// InitialSize returns the starting capacity for d: the recorded size on an
// exact archive match, the nearest entry's size clamped to [Min, Max]
// otherwise, and the configured default when the archive has no answer.
func (s *Sizer) InitialSize(d Descriptor) int {
	size, _, _ := s.initial(d)
	return size
}

func (s *Sizer) initial(d Descriptor) (int, Entry, Match) {
	e, m := s.archive.Lookup(d)
	observability.BufferInitialSource.WithLabelValues(m.String()).Inc()
	switch m {
	case MatchExact:
		return e.BufferSize, e, m
	case MatchNearest:
		return clampInt(e.BufferSize, s.cfg.Min, s.cfg.Max), e, m
	default:
		return clampInt(s.cfg.Default, s.cfg.Min, s.cfg.Max), e, m
	}
}

// NewState creates the dynamic state for a new connection described by d.
// Entry level bounds and adjustment factor override the configured ones
// when the archive provides them.
func (s *Sizer) NewState(d Descriptor) *State {
	size, e, m := s.initial(d)

	l := Limits{
		Min:    s.cfg.Min,
		Max:    s.cfg.Max,
		Growth: s.cfg.Growth,
		Shrink: s.cfg.Shrink,
		Window: s.cfg.Window,
	}
	if m != MatchNone {
		if e.MinBuffer > 0 {
			l.Min = e.MinBuffer
		}
		if e.MaxBuffer > 0 {
			l.Max = e.MaxBuffer
		}
		if e.AdjustmentFactor > 1 {
			l.Growth = e.AdjustmentFactor
			l.Shrink = 1 / e.AdjustmentFactor
		}
		// An exact match may record a size outside the configured range.
		l.Min = min(l.Min, size)
		l.Max = max(l.Max, size)
	}
	return NewState(size, l)
}
