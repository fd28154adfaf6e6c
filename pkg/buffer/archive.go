package buffer

import (
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/rhuss/strom/pkg/api"
)

// DefaultResolution is the number of bins per dimension when an archive
// does not declare one.
const DefaultResolution = 5

// Entry is one elite configuration in the archive.
type Entry struct {
	Descriptor  Descriptor
	BufferSize  int
	Performance float64

	// Optional per-entry bounds and adjustment factor. Zero means unset.
	MinBuffer        int
	MaxBuffer        int
	AdjustmentFactor float64

	// Tunables holds every numeric config field, including the ones
	// decoded above, for diagnostics.
	Tunables map[string]float64
}

// Archive is an immutable, validated table of elite entries. It is safe
// for concurrent reads.
type Archive struct {
	resolution int
	dims       int
	entries    map[string]Entry
	ordered    []Entry
}

// LoadArchive reads and validates an archive file.
func LoadArchive(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.NewArchiveLoadError("reading archive "+path, err)
	}
	a, err := ParseArchive(data)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	return a, nil
}

// ParseArchive validates data against the archive schema and builds the
// lookup table. All entries must share the same number of dimensions and
// carry a positive buffer size.
func ParseArchive(data []byte) (*Archive, error) {
	if !gjson.ValidBytes(data) {
		return nil, api.NewArchiveLoadError("archive is not valid JSON", nil)
	}
	if err := validateArchive(data); err != nil {
		return nil, api.NewArchiveLoadError("archive failed schema validation", err)
	}

	root := gjson.ParseBytes(data)
	table := root.Get("entries")
	if !table.Exists() {
		table = root.Get("archive")
	}

	a := &Archive{
		resolution: int(root.Get("resolution").Int()),
		entries:    make(map[string]Entry),
	}

	var parseErr error
	maxCoord := -1
	table.ForEach(func(key, value gjson.Result) bool {
		d, err := ParseDescriptor(key.Str)
		if err != nil {
			parseErr = err
			return false
		}
		if a.dims == 0 {
			a.dims = len(d)
		} else if len(d) != a.dims {
			parseErr = fmt.Errorf("descriptor %q has %d dimensions, want %d", key.Str, len(d), a.dims)
			return false
		}

		e, err := parseEntry(d, value)
		if err != nil {
			parseErr = fmt.Errorf("entry %q: %w", key.Str, err)
			return false
		}
		for _, c := range d {
			maxCoord = max(maxCoord, c)
		}
		a.entries[d.String()] = e
		return true
	})
	if parseErr != nil {
		return nil, api.NewArchiveLoadError("invalid archive entry", parseErr)
	}

	if a.resolution <= 0 {
		a.resolution = max(DefaultResolution, maxCoord+1)
	}

	a.ordered = make([]Entry, 0, len(a.entries))
	for _, e := range a.entries {
		a.ordered = append(a.ordered, e)
	}
	// Deterministic tie breaking: higher performance first, then key order.
	slices.SortFunc(a.ordered, func(x, y Entry) int {
		if x.Performance != y.Performance {
			if x.Performance > y.Performance {
				return -1
			}
			return 1
		}
		return slices.Compare(x.Descriptor, y.Descriptor)
	})
	return a, nil
}

func parseEntry(d Descriptor, v gjson.Result) (Entry, error) {
	cfg := v.Get("config")
	size := cfg.Get("buffer_size")
	if !size.Exists() {
		size = cfg.Get("bufferSize")
	}
	if size.Type != gjson.Number || size.Int() <= 0 {
		return Entry{}, fmt.Errorf("config.buffer_size must be a positive number")
	}

	e := Entry{
		Descriptor:       d,
		BufferSize:       int(size.Int()),
		Performance:      v.Get("performance").Float(),
		MinBuffer:        int(cfg.Get("min_buffer").Int()),
		MaxBuffer:        int(cfg.Get("max_buffer").Int()),
		AdjustmentFactor: cfg.Get("adjustment_factor").Float(),
		Tunables:         make(map[string]float64),
	}
	cfg.ForEach(func(k, val gjson.Result) bool {
		if val.Type == gjson.Number {
			e.Tunables[k.Str] = val.Float()
		}
		return true
	})
	return e, nil
}

// Resolution returns the number of bins per dimension.
func (a *Archive) Resolution() int {
	return a.resolution
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Match describes how a lookup was satisfied.
type Match int

const (
	MatchNone Match = iota
	MatchExact
	MatchNearest
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchNearest:
		return "nearest"
	default:
		return "default"
	}
}

// Lookup finds the entry for d. An exact coordinate match always wins,
// even for entries recorded outside [0, resolution). Otherwise the entry
// with the smallest Manhattan distance is returned; descriptors of the
// wrong dimensionality or outside the grid match nothing.
func (a *Archive) Lookup(d Descriptor) (Entry, Match) {
	if a == nil || len(a.entries) == 0 || len(d) != a.dims {
		return Entry{}, MatchNone
	}
	if e, ok := a.entries[d.String()]; ok {
		return e, MatchExact
	}
	for _, c := range d {
		if c < 0 || c >= a.resolution {
			return Entry{}, MatchNone
		}
	}

	best, bestDist := Entry{}, -1
	for _, e := range a.ordered {
		if dist := d.distance(e.Descriptor); bestDist < 0 || dist < bestDist {
			best, bestDist = e, dist
		}
	}
	return best, MatchNearest
}
