package room

import (
	"sync"
	"time"
)

// roomTimer is a one-shot timer or ticker whose callback runs on the room
// executor. Stop is idempotent and safe from any goroutine. A fire that is
// already queued when Stop runs still reaches the executor; the callback
// must defuse itself with a generation check.
type roomTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *roomTimer) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

// afterFunc submits cb onto the executor after d, unless stopped first.
func (r *Room) afterFunc(d time.Duration, cb func()) *roomTimer {
	t := &roomTimer{stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.submit(cb)
		case <-t.stop:
		case <-r.done:
		}
	}()
	return t
}

// tickFunc submits cb onto the executor every period until stopped.
func (r *Room) tickFunc(period time.Duration, cb func()) *roomTimer {
	t := &roomTimer{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.submit(cb)
			case <-t.stop:
				return
			case <-r.done:
				return
			}
		}
	}()
	return t
}
