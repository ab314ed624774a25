// Package restore persists the playback state so a restarted process can
// pick up where the crashed one left off.
package restore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Tiliavir/showrun/internal/logger"
	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/storage"
)

// Version of the restore file format.
const Version = 1

// DefaultMaxFailures is how many consecutive failed writes are tolerated
// before writing stops for the session.
const DefaultMaxFailures = 5

const dayLayout = "2006-01-02"

var errMalformed = errors.New("malformed restore point")

// Point is a playback snapshot. AnchorDay is the calendar day day offset 0
// of the loaded event refers to, needed for events past midnight.
type Point struct {
	State     playback.State `json:"state"`
	AnchorDay string         `json:"anchorDay,omitempty"`
}

type envelope struct {
	Version int    `json:"version"`
	Point   *Point `json:"point"`
}

// NewPoint captures state with the given anchor.
func NewPoint(state playback.State, anchor time.Time) Point {
	p := Point{State: state}
	if !anchor.IsZero() {
		p.AnchorDay = anchor.Format(dayLayout)
	}
	return p
}

// Anchor returns local midnight of the anchor day in loc, or the zero time
// when the point has none.
func (p Point) Anchor(loc *time.Location) (time.Time, error) {
	if p.AnchorDay == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dayLayout, p.AnchorDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: anchor day %q: %v", errMalformed, p.AnchorDay, err)
	}
	return t, nil
}

// Encode serialises p inside the versioned envelope.
func Encode(p Point) ([]byte, error) {
	return json.Marshal(envelope{Version: Version, Point: &p})
}

// Decode parses and validates a restore file. Anything structurally off is
// rejected as a whole.
func Decode(data []byte) (Point, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Point{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if env.Version != Version {
		return Point{}, fmt.Errorf("%w: unsupported version %d", errMalformed, env.Version)
	}
	if env.Point == nil {
		return Point{}, fmt.Errorf("%w: no point", errMalformed)
	}
	if err := env.Point.State.Validate(); err != nil {
		return Point{}, err
	}
	if _, err := env.Point.Anchor(time.UTC); err != nil {
		return Point{}, err
	}
	return *env.Point, nil
}

// Store reads and writes the restore file. Writes equal to the previous
// one are skipped; after MaxFailures consecutive failures the store gives
// up until the process restarts.
type Store struct {
	mu          sync.Mutex
	path        string
	maxFailures int
	log         logger.Logger
	write       func(path string, data []byte) error

	last     []byte
	failures int
	disabled bool
}

// NewStore returns a store for path. maxFailures <= 0 uses the default.
func NewStore(path string, maxFailures int, log logger.Logger) *Store {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{path: path, maxFailures: maxFailures, log: log, write: storage.WriteFile}
}

// Load reads the restore point. A missing or unreadable file means there
// is nothing to restore; the problem is logged, never returned.
func (s *Store) Load() (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Point{}, false
	}
	if err != nil {
		s.log.Warning("restore: reading %s: %v", s.path, err)
		return Point{}, false
	}
	p, err := Decode(data)
	if err != nil {
		s.log.Warning("restore: ignoring %s: %v", s.path, err)
		return Point{}, false
	}
	s.last = data
	return p, true
}

// Save writes p unless it equals the last write or the store is disabled.
// The returned error is informational; callers usually just log it.
func (s *Store) Save(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return nil
	}
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("encoding restore point: %w", err)
	}
	if bytes.Equal(data, s.last) {
		return nil
	}
	if err := s.write(s.path, data); err != nil {
		s.failures++
		if s.failures >= s.maxFailures {
			s.disabled = true
			s.log.Error("restore: %d consecutive write failures, disabling restore points for this session: %v", s.failures, err)
		}
		return fmt.Errorf("writing restore point: %w", err)
	}
	s.failures = 0
	s.last = data
	return nil
}

// Disabled reports whether writing stopped after repeated failures.
func (s *Store) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}
