package local

import "time"

// DefaultCleanupInterval is how often expired engine state is swept from memory.
const DefaultCleanupInterval = time.Minute

// Close stops the background cleanup goroutine and waits for it to finish.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.stopCleanup)
		<-e.cleanupDone
	})
	return nil
}

func (e *Engine) cleanupLoop() {
	defer close(e.cleanupDone)

	ticker := time.NewTicker(e.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCleanup:
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep drops pending authorizations, codes, tokens and pushed requests
// that can no longer be used. Grants stay until revoked.
func (e *Engine) Sweep() {
	now := e.nowTime()

	e.lock.Lock()
	defer e.lock.Unlock()

	for k, p := range e.pending {
		if e.pendingExpired(p, now) {
			delete(e.pending, k)
		}
	}
	for k, c := range e.codes {
		if !now.Before(c.expiresAt) {
			delete(e.codes, k)
		}
	}
	for k, t := range e.accessTokens {
		if !t.active(now) {
			delete(e.accessTokens, k)
		}
	}
	for k, t := range e.refreshTokens {
		if !t.active(now) {
			delete(e.refreshTokens, k)
		}
	}
	for k, p := range e.pushed {
		if !now.Before(p.expiresAt) {
			delete(e.pushed, k)
		}
	}
}

// Pending returns the number of authorizations waiting for a decision.
func (e *Engine) Pending() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.pending)
}

// pendingExpired reports whether a pending authorization outlived the time
// a code would have.
func (e *Engine) pendingExpired(p *pendingAuthorization, now time.Time) bool {
	return now.Sub(p.createdAt) > e.config.GetAuthCodeTimeout()+time.Minute
}
