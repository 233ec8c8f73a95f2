package lock

import (
	"context"
	"sync"
)

// Local serializes work per analysis inside one process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, analysisID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[analysisID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[analysisID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(analysisID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(analysisID, s)
		})
	}, nil
}

func (l *Local) release(analysisID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, analysisID)
	}
}
