package service

import (
	"sync"

	"github.com/google/uuid"

	"taxengine/internal/domain"
)

type periodKey struct {
	entityID uuid.UUID
	period   domain.TaxPeriod
}

type periodLock struct {
	mu   sync.Mutex
	refs int
}

// periodLocks serializes summary rebuilds per (entity, period). Entries are
// dropped once no goroutine holds or waits on them.
type periodLocks struct {
	mu    sync.Mutex
	locks map[periodKey]*periodLock
}

func newPeriodLocks() *periodLocks {
	return &periodLocks{locks: make(map[periodKey]*periodLock)}
}

// lock blocks until the key is free and returns its release func.
func (p *periodLocks) lock(entityID uuid.UUID, period domain.TaxPeriod) func() {
	key := periodKey{entityID: entityID, period: period}

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &periodLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

// held returns the number of keys with a holder or waiter.
func (p *periodLocks) held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
