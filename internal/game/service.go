package game

import (
	"context"
	"errors"
	"log/slog"
	mathrand "math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gridmind/internal/cache"
	"gridmind/internal/events"
)

var aiNameRE = regexp.MustCompile(`^[a-zA-Z0-9_\- ]{3,32}$`)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so read helpers
// can run inside or outside a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	db    *pgxpool.Pool
	cache cache.Store
	bus   events.Bus
	log   *slog.Logger

	mu   sync.Mutex
	rand *mathrand.Rand
	now  func() time.Time

	burn BurnFunc
}

func NewService(db *pgxpool.Pool, store cache.Store, bus events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = cache.NewMemory()
	}
	if bus == nil {
		bus = &events.LogBus{Log: logger}
	}
	return &Service{
		db:    db,
		cache: store,
		bus:   bus,
		log:   logger,
		rand:  mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// SetClock overrides time for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetSeed makes random draws reproducible for tests.
func (s *Service) SetSeed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = mathrand.New(mathrand.NewSource(seed))
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

// randRange returns a uniform integer in [lo, hi].
func (s *Service) randRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rand.Intn(hi-lo+1)
}

func (s *Service) randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// todayKey is the UTC day bucket used for bot pools, counters and the
// daily modifier.
func (s *Service) todayKey() string {
	return s.now().UTC().Format("2006-01-02")
}

func (s *Service) publish(kind events.Kind, playerID, message string) {
	s.bus.Publish(events.Event{Kind: kind, PlayerID: playerID, Message: message, At: s.now().UTC()})
}

const (
	maxTxAttempts  = 8
	baseRetryDelay = 75 * time.Millisecond
	maxRetryDelay  = 1200 * time.Millisecond
)

// withSerializableTx runs fn inside a serializable transaction, retrying on
// serialization failure with backoff. fn must not commit; the wrapper does.
func (s *Service) withSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := baseRetryDelay
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			return Conflictf("transaction conflict, try again")
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return Conflictf("transaction conflict, try again")
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// dailyCounter increments a per-day cache counter and returns the new value.
// Counters expire on their own 26h after first touch.
func (s *Service) dailyCounter(ctx context.Context, key string) (int, error) {
	return s.dailyCounterAdd(ctx, key, 1)
}

func (s *Service) dailyCounterAdd(ctx context.Context, key string, n int) (int, error) {
	v, err := s.cache.IncrBy(ctx, key, int64(n), 26*time.Hour)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *Service) dailyCounterValue(ctx context.Context, key string) (int, error) {
	v, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, nil
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
