package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"claimcast/claims"
)

// FormatVersion is written into every persisted store.
const FormatVersion = 1

// Store is an immutable set of trained segments.
type Store struct {
	segments  map[claims.SegmentKey]*Segment
	trainedAt time.Time
}

// NewStore indexes segments by key. A later segment replaces an earlier one
// with the same key.
func NewStore(trainedAt time.Time, segments ...*Segment) *Store {
	s := &Store{
		segments:  make(map[claims.SegmentKey]*Segment, len(segments)),
		trainedAt: trainedAt,
	}
	for _, seg := range segments {
		if seg == nil {
			continue
		}
		s.segments[seg.Key] = seg
	}
	return s
}

func (s *Store) Get(county, claimType string) (*Segment, bool) {
	if s == nil {
		return nil, false
	}
	seg, ok := s.segments[claims.SegmentKey{County: county, ClaimType: claimType}]
	return seg, ok
}

// Keys lists segment keys sorted by county then claim type.
func (s *Store) Keys() []claims.SegmentKey {
	if s == nil {
		return nil
	}
	keys := make([]claims.SegmentKey, 0, len(s.segments))
	for k := range s.segments {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].County != keys[j].County {
			return keys[i].County < keys[j].County
		}
		return keys[i].ClaimType < keys[j].ClaimType
	})
	return keys
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.segments)
}

func (s *Store) TrainedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.trainedAt
}

type storeFile struct {
	Format    int        `json:"format"`
	TrainedAt time.Time  `json:"trained_at"`
	Segments  []*Segment `json:"segments"`
}

// Save encodes the store as gzip-compressed JSON.
func Save(s *Store) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Encode(w io.Writer, s *Store) error {
	file := storeFile{Format: FormatVersion, TrainedAt: s.TrainedAt()}
	for _, k := range s.Keys() {
		file.Segments = append(file.Segments, s.segments[k])
	}

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(file); err != nil {
		zw.Close()
		return fmt.Errorf("encode model store: %w", err)
	}
	return zw.Close()
}

// Load decodes a blob produced by Save.
func Load(blob []byte) (*Store, error) {
	return Decode(bytes.NewReader(blob))
}

func Decode(r io.Reader) (*Store, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	defer zr.Close()

	var file storeFile
	if err := json.NewDecoder(zr).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode model store: %w", err)
	}
	if file.Format != FormatVersion {
		return nil, fmt.Errorf("format %d: %w", file.Format, ErrUnsupportedFormat)
	}
	for i, seg := range file.Segments {
		if seg == nil || seg.CountModel == nil || seg.CostModel == nil {
			return nil, fmt.Errorf("segment %d is incomplete: %w", i, ErrModelNotTrained)
		}
		if len(seg.CountModel.Coefficients) != len(seg.FeatureColumns) ||
			len(seg.CostModel.Coefficients) != len(seg.FeatureColumns) {
			return nil, fmt.Errorf("segment %s: %w", seg.Key, ErrFeatureMismatch)
		}
	}
	return NewStore(file.TrainedAt, file.Segments...), nil
}
