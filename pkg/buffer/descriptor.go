package buffer

import (
	"fmt"
	"strconv"
	"strings"
)

// Descriptor is a point in the archive's behavior space: one quantized
// bin per request feature.
type Descriptor []int

// ParseDescriptor parses archive coordinate keys. Accepted forms are a
// single integer ("5"), a comma separated list ("0,1,2") and a tuple
// literal ("(0, 1, 2)").
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSuffix(strings.TrimSpace(s), ",")
	if s == "" {
		return nil, fmt.Errorf("empty descriptor")
	}

	parts := strings.Split(s, ",")
	d := make(Descriptor, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("descriptor %q: %w", s, err)
		}
		d[i] = v
	}
	return d, nil
}

// String returns the canonical key form, e.g. "0,1,2".
func (d Descriptor) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// distance returns the Manhattan distance between two descriptors of
// equal length.
func (d Descriptor) distance(other Descriptor) int {
	sum := 0
	for i := range d {
		diff := d[i] - other[i]
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return sum
}

// Features are the raw request properties a descriptor is built from.
type Features struct {
	// Concurrent is the number of requests in flight when this one starts.
	Concurrent int

	// ExpectedBytes is the expected response size.
	ExpectedBytes int

	// ErrorRate is the recent failure ratio in [0, 1].
	ErrorRate float64
}

// DescriptorFor quantizes f into a three dimensional descriptor with the
// given resolution: load bin (5 concurrent requests per bin), size bin
// (1000 bytes per bin) and error bin (rate times resolution). Each bin is
// capped at resolution-1.
func DescriptorFor(f Features, resolution int) Descriptor {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	top := resolution - 1
	return Descriptor{
		clampInt(f.Concurrent/5, 0, top),
		clampInt(f.ExpectedBytes/1000, 0, top),
		clampInt(int(f.ErrorRate*float64(resolution)), 0, top),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
