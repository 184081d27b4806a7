// Package audit journals session state transitions to Postgres. The journal
// is observational: relay behaviour never depends on it, and message
// contents are never written, only lifecycle events.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/session"
)

const insertEvent = `
	INSERT INTO session_events (user_id, from_state, to_state, cause, occurred_at)
	VALUES ($1, $2, $3, $4, $5)`

type event struct {
	userID     int64
	from, to   string
	cause      string
	occurredAt time.Time
}

// Store writes transition events through a small buffered queue so the
// registry's observer callback never waits on the database.
type Store struct {
	db     *sqlx.DB
	queue  chan event
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// NewStore starts the store's writer goroutine. db must be connected.
func NewStore(db *sqlx.DB) *Store {
	s := &Store{
		db:     db,
		queue:  make(chan event, 256),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.writer()
	return s
}

// Observer adapts the store to the registry's observer hook. Events are
// dropped with a warning when the queue is saturated; the journal is best
// effort by design.
func (s *Store) Observer() session.Observer {
	return func(userID int64, from, to session.State, cause session.Cause) {
		e := event{
			userID:     userID,
			from:       from.String(),
			to:         to.String(),
			cause:      string(cause),
			occurredAt: time.Now().UTC(),
		}
		select {
		case <-s.closed:
		case s.queue <- e:
		default:
			logger.Warn(context.Background(), "relay.audit", "journal.drop",
				slog.Int64("user_id", userID),
				slog.String("cause", e.cause),
			)
		}
	}
}

func (s *Store) writer() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := s.db.ExecContext(ctx, insertEvent, e.userID, e.from, e.to, e.cause, e.occurredAt)
		cancel()
		if err != nil {
			logger.Error(context.Background(), "relay.audit", "journal.insert.fail",
				slog.Int64("user_id", e.userID),
				slog.String("cause", e.cause),
				slog.String("err", err.Error()),
			)
			continue
		}
		logger.Debug(context.Background(), "relay.audit", "journal.insert",
			slog.Int64("user_id", e.userID),
			slog.String("cause", e.cause),
		)
	}
}

// Close drains queued events and stops the writer.
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.queue)
		<-s.done
	})
}

// Totals aggregates lifetime transition counts by cause.
func (s *Store) Totals(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT cause, COUNT(*) FROM session_events GROUP BY cause`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var cause string
		var count int64
		if err := rows.Scan(&cause, &count); err != nil {
			return nil, err
		}
		totals[cause] = count
	}
	return totals, rows.Err()
}
