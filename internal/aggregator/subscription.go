package aggregator

// Subscription delivers snapshots as they change. Only the most recent
// undelivered snapshot is kept.
type Subscription struct {
	C     <-chan Snapshot
	ch    chan Snapshot
	owner *Aggregator
}

// Subscribe registers a listener; the current snapshot is delivered first.
// Release it with Close.
func (a *Aggregator) Subscribe() *Subscription {
	ch := make(chan Snapshot, 1)
	sub := &Subscription{C: ch, ch: ch, owner: a}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs[sub] = struct{}{}
	sub.offer(a.snap)
	return sub
}

// Close releases the subscription. Calling it more than once is harmless.
func (s *Subscription) Close() {
	a := s.owner
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.subs[s]; !ok {
		return
	}
	delete(a.subs, s)
	close(s.ch)
}

func (s *Subscription) offer(snap Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
