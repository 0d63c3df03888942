package compass

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"
)

type feed int

const (
	feedAll feed = iota
	feedAbsolute
	feedRelative
)

// ReaderSource reads orientation samples encoded as one JSON object per line,
// e.g. {"alpha": 120.5, "absolute": false} or {"compass_heading": 240}.
// Subscribing to the source itself receives every sample; Absolute and
// Relative receive only samples of that kind.
type ReaderSource struct {
	logger *zap.SugaredLogger

	mu       sync.Mutex
	handlers map[feed]func(Orientation)
	ids      map[feed]uint64
}

func NewReaderSource(logger *zap.SugaredLogger) *ReaderSource {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ReaderSource{
		logger:   logger,
		handlers: map[feed]func(Orientation){},
		ids:      map[feed]uint64{},
	}
}

// Subscribe installs fn as the only receiver of every sample; a previous
// receiver is dropped.
func (s *ReaderSource) Subscribe(fn func(Orientation)) (func(), error) {
	return s.subscribe(feedAll, fn)
}

// Absolute is the feed of north-referenced samples.
func (s *ReaderSource) Absolute() OrientationSource { return readerFeed{s, feedAbsolute} }

// Relative is the feed of samples flagged "absolute": false.
func (s *ReaderSource) Relative() OrientationSource { return readerFeed{s, feedRelative} }

func (s *ReaderSource) subscribe(f feed, fn func(Orientation)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[f]++
	id := s.ids[f]
	s.handlers[f] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ids[f] == id {
			delete(s.handlers, f)
		}
	}, nil
}

// Run decodes r until it is exhausted or ctx ends. Samples arriving with no
// subscriber are dropped.
func (s *ReaderSource) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var o Orientation
		if err := json.Unmarshal(line, &o); err != nil {
			s.logger.Debugw("skipping orientation sample", "error", err)
			continue
		}
		kind := feedRelative
		if o.IsAbsolute() {
			kind = feedAbsolute
		}
		s.mu.Lock()
		all, typed := s.handlers[feedAll], s.handlers[kind]
		s.mu.Unlock()
		if all != nil {
			all(o)
		}
		if typed != nil {
			typed(o)
		}
	}
	return sc.Err()
}

type readerFeed struct {
	src  *ReaderSource
	kind feed
}

func (f readerFeed) Subscribe(fn func(Orientation)) (func(), error) {
	return f.src.subscribe(f.kind, fn)
}
