// Package audio splits raw audio byte streams into bounded-size chunks for
// parallel transcription.
package audio

import "time"

// Defaults for chunk splitting. BytesPerSecond is a rough estimate for
// compressed speech audio; duration derived from it is an approximation,
// not decoded media length.
const (
	DefaultMaxChunkBytes    = 24 << 20
	DefaultOverlap          = 3 * time.Second
	DefaultMinChunkDuration = 30 * time.Second
	DefaultBytesPerSecond   = 32000
)

// Splitter partitions audio bytes into ordered chunks. Chunk numbering by
// position in the returned slice is the canonical ordinal used downstream.
type Splitter struct {
	// MaxChunkBytes is the size budget each encoded chunk must stay near.
	MaxChunkBytes int
	// Overlap is the trailing duration each chunk (except the last) copies
	// from the subsequent region, so the merger can deduplicate boundary
	// text. Applied forward only.
	Overlap time.Duration
	// MinChunkDuration is a floor on segment duration, preventing degenerate
	// over-splitting of short high-bitrate audio.
	MinChunkDuration time.Duration
	// BytesPerSecond estimates encoded audio density. Zero disables
	// duration-aware splitting and falls back to pure byte-range slicing
	// with no overlap.
	BytesPerSecond int
}

// NewSplitter returns a Splitter with defaults filled in.
func NewSplitter(maxChunkBytes int, overlap, minChunkDuration time.Duration, bytesPerSecond int) *Splitter {
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if minChunkDuration <= 0 {
		minChunkDuration = DefaultMinChunkDuration
	}
	return &Splitter{
		MaxChunkBytes:    maxChunkBytes,
		Overlap:          overlap,
		MinChunkDuration: minChunkDuration,
		BytesPerSecond:   bytesPerSecond,
	}
}

// Split partitions audio into ordered chunks. The returned overlapped flag
// tells the caller whether chunk boundaries carry duplicated audio, which
// decides between overlap-aware merging and plain joining.
//
// Inputs within the size budget are returned whole, a fast path with no
// splitting overhead.
func (s *Splitter) Split(audio []byte) (chunks [][]byte, overlapped bool) {
	if len(audio) <= s.MaxChunkBytes {
		return [][]byte{audio}, false
	}
	if s.BytesPerSecond <= 0 {
		return s.splitBytes(audio), false
	}
	return s.splitWithOverlap(audio), true
}

// splitWithOverlap partitions audio into ceil(size/target) nominal ranges and
// extends every chunk except the last by the overlap duration.
func (s *Splitter) splitWithOverlap(audio []byte) [][]byte {
	overlapBytes := int(s.Overlap.Seconds() * float64(s.BytesPerSecond))

	target := s.MaxChunkBytes - overlapBytes
	minBytes := int(s.MinChunkDuration.Seconds() * float64(s.BytesPerSecond))
	if target < minBytes {
		// The floor wins over the budget: fewer, longer chunks rather than
		// splintering short high-bitrate audio.
		target = minBytes
	}
	if target < 1 {
		target = 1
	}

	size := len(audio)
	n := (size + target - 1) / target
	chunks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * target
		end := start + target
		if end > size {
			end = size
		}
		if i < n-1 {
			ext := end + overlapBytes
			if ext > size {
				ext = size
			}
			end = ext
		}
		chunks = append(chunks, audio[start:end])
	}
	return chunks
}

// splitBytes is the lower-fidelity fallback: pure byte-range slicing with no
// overlap. Words may be cut mid-token; the transcription backend's robustness
// is relied on instead of precise merging.
func (s *Splitter) splitBytes(audio []byte) [][]byte {
	target := s.MaxChunkBytes
	size := len(audio)
	n := (size + target - 1) / target
	chunks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * target
		end := start + target
		if end > size {
			end = size
		}
		chunks = append(chunks, audio[start:end])
	}
	return chunks
}

// EstimateDuration approximates audio duration in seconds from byte size.
// Deliberately cheap; not exact media duration.
func (s *Splitter) EstimateDuration(size int) float64 {
	bps := s.BytesPerSecond
	if bps <= 0 {
		bps = DefaultBytesPerSecond
	}
	return float64(size) / float64(bps)
}
