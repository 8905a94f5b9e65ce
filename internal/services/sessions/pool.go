package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
)

// ErrSessionGone is returned when a session ID is unknown or was evicted
var ErrSessionGone = fmt.Errorf("session gone")

// ErrPoolFull is returned when max_sessions is configured and reached
var ErrPoolFull = fmt.Errorf("session pool is full")

// session pairs the live driver with its pool bookkeeping. opMu serializes
// operations that borrow the driver: two crawls on the same session run one
// after the other, never interleaved.
type session struct {
	info   models.SessionInfo
	driver *browser.Driver
	opMu   sync.Mutex
}

// Pool maps session IDs to live browser drivers. One mutex guards the map;
// the idle sweeper takes the same mutex, so get/create never observe a
// half-closed session.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*session

	idleTTL       time.Duration
	sweepInterval time.Duration
	maxSessions   int

	sweeperOnce sync.Once
	stopCh      chan struct{}
	stopOnce    sync.Once

	logger arbor.ILogger
}

// NewPool creates a session pool; the sweeper starts with the first session
func NewPool(config *common.SessionsConfig, logger arbor.ILogger) *Pool {
	return &Pool{
		sessions:      make(map[string]*session),
		idleTTL:       common.Duration(config.IdleTTL, 5*time.Minute),
		sweepInterval: common.Duration(config.SweepInterval, 60*time.Second),
		maxSessions:   config.MaxSessions,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
}

// Create stores a driver under the given ID (generated when empty) and
// returns the ID. Creating over an existing ID closes the old driver first.
func (p *Pool) Create(id string, driver *browser.Driver) (string, error) {
	if id == "" {
		id = common.NewSessionID()
	}

	p.mu.Lock()
	if existing, ok := p.sessions[id]; ok {
		existing.driver.Close()
	} else if p.maxSessions > 0 && len(p.sessions) >= p.maxSessions {
		p.mu.Unlock()
		return "", ErrPoolFull
	}

	now := time.Now()
	p.sessions[id] = &session{
		info: models.SessionInfo{
			ID:         id,
			CreatedAt:  now,
			LastUsedAt: now,
			Metadata:   make(map[string]interface{}),
		},
		driver: driver,
	}
	p.mu.Unlock()

	p.sweeperOnce.Do(func() { go p.sweepLoop() })

	p.logger.Debug().Str("session_id", id).Msg("Session registered")
	return id, nil
}

// Acquire returns the driver for a live session together with a release
// function. The session's operation lock is held until release, so
// concurrent acquirers of the same session are serialized. last_used_at is
// bumped on acquisition.
func (p *Pool) Acquire(id string) (*browser.Driver, func(), error) {
	p.mu.Lock()
	sess, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return nil, nil, ErrSessionGone
	}
	sess.info.LastUsedAt = time.Now()
	p.mu.Unlock()

	sess.opMu.Lock()

	// The sweeper may have evicted the session while we waited for the lock
	p.mu.Lock()
	_, stillLive := p.sessions[id]
	p.mu.Unlock()
	if !stillLive {
		sess.opMu.Unlock()
		return nil, nil, ErrSessionGone
	}

	release := func() {
		p.mu.Lock()
		if current, ok := p.sessions[id]; ok && current == sess {
			current.info.LastUsedAt = time.Now()
		}
		p.mu.Unlock()
		sess.opMu.Unlock()
	}
	return sess.driver, release, nil
}

// Get reports whether the session is live, bumping last_used_at. Callers
// that need the driver should use Acquire.
func (p *Pool) Get(id string) (*models.SessionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[id]
	if !ok {
		return nil, ErrSessionGone
	}
	sess.info.LastUsedAt = time.Now()

	info := sess.info
	return &info, nil
}

// UpdateMetadata shallow-merges a fragment into the session's metadata
func (p *Pool) UpdateMetadata(id string, fragment map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[id]
	if !ok {
		return ErrSessionGone
	}
	for k, v := range fragment {
		sess.info.Metadata[k] = v
	}
	return nil
}

// Close tears down one session's browser and removes the mapping
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	sess, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	if !ok {
		return ErrSessionGone
	}
	sess.driver.Close()
	p.logger.Debug().Str("session_id", id).Msg("Session closed")
	return nil
}

// CloseAll closes every session; used at shutdown
func (p *Pool) CloseAll() {
	p.mu.Lock()
	drained := make([]*session, 0, len(p.sessions))
	for id, sess := range p.sessions {
		drained = append(drained, sess)
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	for _, sess := range drained {
		sess.driver.Close()
	}
	if len(drained) > 0 {
		p.logger.Info().Int("count", len(drained)).Msg("All sessions closed")
	}
}

// Stop halts the sweeper and closes all sessions
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.CloseAll()
}

// Count returns the number of live sessions
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// sweepLoop evicts idle sessions on a fixed period. Errors are logged and
// swallowed; the sweeper never dies.
func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep(time.Now())
		}
	}
}

// sweep closes every session idle longer than the TTL. Runs under the pool
// lock so get/create wait out the sweep.
func (p *Pool) sweep(now time.Time) {
	p.mu.Lock()
	var evicted []*session
	var evictedIDs []string
	for id, sess := range p.sessions {
		if sess.info.IdleFor(now) > p.idleTTL {
			evicted = append(evicted, sess)
			evictedIDs = append(evictedIDs, id)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	for i, sess := range evicted {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn().Str("session_id", evictedIDs[i]).
						Str("panic", fmt.Sprintf("%v", r)).Msg("Session teardown panicked during sweep")
				}
			}()
			sess.driver.Close()
		}()
		p.logger.Info().Str("session_id", evictedIDs[i]).Msg("Evicted idle session")
	}
}
