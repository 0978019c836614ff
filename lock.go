package toolkit

import (
	"context"
	"errors"
	"time"

	"github.com/Maksumys/migration-toolkit/internal/dialect"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var errLockBusy = errors.New("lock is held by another process")

// lockManager polls the dialect lock at a constant interval.
type lockManager struct {
	dialect  dialect.Dialect
	interval time.Duration
	attempts int
	logger   logrus.FieldLogger
	metrics  *metrics

	// refreshEvery is half the lock expiry, refreshed is the last acquire or refresh.
	refreshEvery time.Duration
	refreshed    time.Time
}

func newLockManager(d dialect.Dialect, cfg LockConfig, logger logrus.FieldLogger, m *metrics) *lockManager {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = dialect.DefaultLockExpiry
	}
	return &lockManager{
		dialect:      d,
		interval:     cfg.RetryInterval,
		attempts:     cfg.MaxAttempts,
		logger:       logger,
		metrics:      m,
		refreshEvery: expiry / 2,
	}
}

// acquire must run on the session that later calls release.
func (l *lockManager) acquire(ctx context.Context, conn *gorm.DB) error {
	start := time.Now()
	attempt := 0

	operation := func() error {
		attempt++
		ok, err := l.dialect.TryLock(conn)
		if err != nil {
			return backoff.Permanent(storeError("try lock", err))
		}
		if !ok {
			l.logger.WithField("attempt", attempt).Debug("Migration lock is busy")
			return errLockBusy
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.interval), uint64(l.attempts-1)),
		ctx,
	)

	err := backoff.Retry(operation, policy)
	l.metrics.lockWait.Observe(time.Since(start).Seconds())

	if errors.Is(err, errLockBusy) {
		return &LockTimeoutError{Table: l.dialect.Table(), Attempts: attempt}
	}
	if err != nil {
		return err
	}

	l.refreshed = time.Now()
	l.logger.WithField("elapsed", time.Since(start)).Debug("Migration lock acquired")
	return nil
}

// keepAlive refreshes the held lock once half of its expiry has passed.
func (l *lockManager) keepAlive(conn *gorm.DB) error {
	if time.Since(l.refreshed) < l.refreshEvery {
		return nil
	}
	if err := l.dialect.Refresh(conn); err != nil {
		return storeError("refresh lock", err)
	}
	l.refreshed = time.Now()
	l.logger.Debug("Migration lock refreshed")
	return nil
}

func (l *lockManager) release(conn *gorm.DB) error {
	if err := l.dialect.Unlock(conn); err != nil {
		return &LockReleaseError{Table: l.dialect.Table(), Err: err}
	}
	l.logger.Debug("Migration lock released")
	return nil
}
