package tickets

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
)

// DefaultCleanupInterval is how often expired tickets are swept from memory.
const DefaultCleanupInterval = time.Minute

type memoryEntry struct {
	ticket   AuthorizationTicket
	redeemed bool
}

// InMemoryRegistry is a process-local Registry. Redeemed and expired tickets
// stay as tombstones for one extra TTL so late redemptions report
// ErrTicketUsed or ErrTicketExpired instead of ErrTicketNotFound.
type InMemoryRegistry struct {
	opts options

	mu      sync.Mutex
	entries map[string]*memoryEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

var _ Registry = (*InMemoryRegistry)(nil)

// NewInMemoryRegistry creates the registry and starts its cleanup goroutine.
// Call Close to stop it.
func NewInMemoryRegistry(opts ...Option) *InMemoryRegistry {
	r := &InMemoryRegistry{
		opts:            buildOptions(opts),
		entries:         make(map[string]*memoryEntry),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *InMemoryRegistry) Issue(_ context.Context, request RequestContext) (string, error) {
	t := r.opts.newTicket(request)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t.ID] = &memoryEntry{ticket: *t}
	return t.ID, nil
}

func (r *InMemoryRegistry) Redeem(_ context.Context, id string) (*RequestContext, error) {
	if id == "" {
		return nil, errors.ErrTicketNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, errors.ErrTicketNotFound
	}

	request := e.ticket.Request
	if e.redeemed {
		return &request, errors.ErrTicketUsed
	}
	// An expired ticket is consumed too; it can never succeed later.
	e.redeemed = true
	if e.ticket.Expired(r.opts.nowTime()) {
		return &request, errors.ErrTicketExpired
	}
	return &request, nil
}

// Len returns the number of tickets currently held, tombstones included.
func (r *InMemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (r *InMemoryRegistry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopCleanup)
		<-r.cleanupDone
	})
	return nil
}

func (r *InMemoryRegistry) cleanupLoop() {
	defer close(r.cleanupDone)

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCleanup:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep drops tickets whose tombstone period has passed.
func (r *InMemoryRegistry) Sweep() {
	cutoff := r.opts.nowTime().Add(-r.opts.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.ticket.ExpiresAt.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}
