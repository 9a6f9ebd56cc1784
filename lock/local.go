package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token     string
	expiresAt time.Time
}

// Local keeps locks in-process. Expired records are ignored on TryLock and
// pruned by an optional sweep loop.
type Local struct {
	mu     sync.Mutex
	locks  map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	now func() time.Time
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process Locker. sweepInterval <= 0 disables the
// background sweep.
func NewLocal(sweepInterval time.Duration) *Local {
	l := &Local{
		locks: make(map[string]localEntry),
		now:   time.Now,
	}
	if sweepInterval > 0 {
		l.ticker = time.NewTicker(sweepInterval)
		l.stopCh = make(chan struct{})
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			for {
				select {
				case <-l.ticker.C:
					l.Sweep()
				case <-l.stopCh:
					return
				}
			}
		}()
	}
	return l
}

func (l *Local) TryLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	l.locks[key] = localEntry{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *Local) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	if e, ok := l.locks[key]; ok && e.token == token {
		delete(l.locks, key)
	}
	l.mu.Unlock()
	return nil
}

// Held reports whether key is currently locked (expired records count as free).
func (l *Local) Held(key string) bool {
	now := l.now()
	l.mu.Lock()
	e, ok := l.locks[key]
	l.mu.Unlock()
	return ok && now.Before(e.expiresAt)
}

// Sweep drops expired records.
func (l *Local) Sweep() {
	now := l.now()
	l.mu.Lock()
	for k, e := range l.locks {
		if !now.Before(e.expiresAt) {
			delete(l.locks, k)
		}
	}
	l.mu.Unlock()
}

func (l *Local) Close(context.Context) error {
	l.once.Do(func() {
		if l.stopCh != nil {
			l.ticker.Stop()
			close(l.stopCh)
			l.wg.Wait()
		}
	})
	return nil
}
