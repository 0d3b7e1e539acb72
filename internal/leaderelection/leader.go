// Package leaderelection provides Postgres advisory lock-based leader election.
//
// A single Postgres session-scoped advisory lock determines which instance
// runs the singleton background duties (job worker, reconciler). The lock is
// held for the lifetime of a dedicated database connection; there is no
// renewal or TTL. If the connection dies, Postgres releases the lock
// server-side (timing depends on TCP keepalive settings).
//
// The heartbeat ping exists solely to detect local connection death so the
// leader can stop its duties promptly. It does NOT renew the lock.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusUpdate(isLeader bool)
}

// Config holds the elector timing parameters.
type Config struct {
	// LockKey identifies the advisory lock. All instances competing for
	// the same singleton duties must share it.
	LockKey int64

	// RetryInterval is how often a follower attempts lock acquisition.
	// It bounds the failover gap after a leader dies.
	RetryInterval time.Duration

	// HeartbeatInterval is how often the leader pings its dedicated
	// connection to detect connection death.
	HeartbeatInterval time.Duration
}

// Elector manages leader election using a Postgres advisory lock.
type Elector struct {
	db      *sql.DB
	cfg     Config
	onLead  func(ctx context.Context)
	onYield func()
	metrics MetricsSink // optional, nil = disabled
}

// New creates a new Elector.
//
// onLead is called in a new goroutine when this instance acquires the lock.
// The provided context is cancelled when leadership is lost. onLead should
// start the leader duties and return quickly.
//
// onYield is called synchronously when leadership is lost. It should stop
// the leader duties and block until they are fully stopped. It must be
// idempotent.
func New(db *sql.DB, cfg Config, onLead func(ctx context.Context), onYield func()) *Elector {
	return &Elector{
		db:      db,
		cfg:     cfg,
		onLead:  onLead,
		onYield: onYield,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run starts the leader election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: starting election loop (lock_key=%d, retry=%s, heartbeat=%s)",
		e.cfg.LockKey, e.cfg.RetryInterval, e.cfg.HeartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}

		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.cfg.RetryInterval)
		}

		select {
		case <-ctx.Done():
			log.Println("leader: election loop stopped")
			return
		case <-time.After(e.cfg.RetryInterval):
		}
	}
}

// runOnce attempts to acquire the advisory lock and hold it.
// Returns the reason leadership was lost ("" if lock was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	// Advisory lock is session-scoped: must use a dedicated connection.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		log.Printf("leader: failed to acquire dedicated connection: %v", err)
		return ""
	}
	defer conn.Close()

	// Non-blocking lock attempt.
	var acquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.cfg.LockKey).Scan(&acquired)
	if err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: lock %d held by another instance, retrying in %s", e.cfg.LockKey, e.cfg.RetryInterval)
		return ""
	}

	log.Printf("leader: acquired advisory lock %d", e.cfg.LockKey)
	if e.metrics != nil {
		e.metrics.LeaderStatusUpdate(true)
	}

	leaderCtx, cancelLeader := context.WithCancel(ctx)

	go e.onLead(leaderCtx)

	// Ping detects local connection death; it does NOT renew the lock (no TTL).
	reason := e.holdLock(ctx, conn)

	cancelLeader()
	e.onYield()

	if e.metrics != nil {
		e.metrics.LeaderStatusUpdate(false)
	}

	log.Printf("leader: released advisory lock %d", e.cfg.LockKey)
	return reason
}

// holdLock blocks while pinging the dedicated connection.
// Returns the reason the lock was lost.
func (e *Elector) holdLock(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: dedicated connection ping failed: %v", err)
				return "conn_lost"
			}
		}
	}
}
