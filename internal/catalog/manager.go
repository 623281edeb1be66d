package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config controls crawler creation and the start/poll loops.
type Config struct {
	Role     string
	Database string
	// MaxStartAttempts is the total number of start requests, including the first.
	MaxStartAttempts int
	RetryDelay       time.Duration
	PollInterval     time.Duration
}

// DefaultConfig returns the stock retry and poll settings.
func DefaultConfig() Config {
	return Config{
		Database:         "covid19",
		MaxStartAttempts: 20,
		RetryDelay:       10 * time.Second,
		PollInterval:     10 * time.Second,
	}
}

// Observer receives lifecycle events. StartAttempt fires for accepted and
// conflicting start requests, not for failed ones. Implementations must be
// safe to call from the goroutine running the Manager.
type Observer interface {
	CrawlerCreated(name string)
	StartAttempt(name string, conflict bool)
	Polled(name string, state State)
}

type nopObserver struct{}

func (nopObserver) CrawlerCreated(string)     {}
func (nopObserver) StartAttempt(string, bool) {}
func (nopObserver) Polled(string, State)      {}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock used for retry and poll sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithObserver registers an Observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// Manager creates, starts and waits on crawlers. It never deletes or
// reconfigures an existing crawler.
type Manager struct {
	svc      Service
	cfg      Config
	clock    clockwork.Clock
	observer Observer
	log      *zap.Logger
}

// NewManager returns a Manager over svc. Zero-valued retry settings fall back
// to DefaultConfig.
func NewManager(svc Service, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.MaxStartAttempts <= 0 {
		cfg.MaxStartAttempts = def.MaxStartAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}

	m := &Manager{
		svc:      svc,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
		log:      zap.L().With(zap.String("component", "catalog")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure creates the crawler if it does not exist. An existing crawler is left
// untouched, whatever its target.
func (m *Manager) Ensure(ctx context.Context, name, targetPath string) error {
	if name == "" {
		return eris.New("catalog: ensure: empty crawler name")
	}
	if strings.HasSuffix(strings.ToLower(targetPath), ".parquet") {
		return eris.Wrapf(ErrInvalidTarget, "catalog: ensure %s: target %q", name, targetPath)
	}

	_, err := m.svc.GetCrawler(ctx, name)
	switch {
	case err == nil:
		m.log.Info("crawler already exists", zap.String("crawler", name))
		return nil
	case errors.Is(err, ErrNotFound):
	default:
		return eris.Wrapf(err, "catalog: get crawler %s", name)
	}

	spec := CrawlerSpec{
		Name:       name,
		Role:       m.cfg.Role,
		Database:   m.cfg.Database,
		TargetPath: targetPath,
	}
	if err := m.svc.CreateCrawler(ctx, spec); err != nil {
		return eris.Wrapf(err, "catalog: create crawler %s", name)
	}
	m.observer.CrawlerCreated(name)
	m.log.Info("crawler created",
		zap.String("crawler", name),
		zap.String("target", targetPath),
		zap.String("database", m.cfg.Database),
	)
	return nil
}

// Start requests a crawl. With poll, a running crawler is retried until it
// accepts the start and the call then blocks until the crawler is READY again.
// Without poll, a running crawler is logged and left alone.
func (m *Manager) Start(ctx context.Context, name string, poll bool) error {
	err := m.svc.StartCrawler(ctx, name)
	if conflict := errors.Is(err, ErrAlreadyRunning); err == nil || conflict {
		m.observer.StartAttempt(name, conflict)
	}

	switch {
	case err == nil:
		m.log.Info("crawler started", zap.String("crawler", name))
	case errors.Is(err, ErrAlreadyRunning) && !poll:
		m.log.Warn("crawler already running, not waiting", zap.String("crawler", name))
		return nil
	case errors.Is(err, ErrAlreadyRunning):
		m.log.Warn("crawler already running, retrying start", zap.String("crawler", name))
		if err := m.retryStart(ctx, name); err != nil {
			return err
		}
	default:
		return eris.Wrapf(err, "catalog: start crawler %s", name)
	}

	if !poll {
		return nil
	}
	return m.WaitReady(ctx, name)
}

// retryStart re-issues start requests after the first one conflicted, sleeping
// RetryDelay before each, until MaxStartAttempts requests have been made.
func (m *Manager) retryStart(ctx context.Context, name string) error {
	for attempt := 2; attempt <= m.cfg.MaxStartAttempts; attempt++ {
		if err := m.sleep(ctx, m.cfg.RetryDelay); err != nil {
			return eris.Wrapf(err, "catalog: start crawler %s", name)
		}

		err := m.svc.StartCrawler(ctx, name)
		conflict := errors.Is(err, ErrAlreadyRunning)
		if err == nil || conflict {
			m.observer.StartAttempt(name, conflict)
		}
		switch {
		case err == nil:
			m.log.Info("crawler started", zap.String("crawler", name), zap.Int("attempt", attempt))
			return nil
		case conflict:
			m.log.Debug("crawler still running", zap.String("crawler", name), zap.Int("attempt", attempt))
		default:
			return eris.Wrapf(err, "catalog: start crawler %s", name)
		}
	}
	return &StartRetriesExhaustedError{Name: name, Attempts: m.cfg.MaxStartAttempts}
}

// WaitReady polls the crawler until it reports READY. RUNNING and STOPPING
// are waited out; any other state is fatal. There is no iteration cap.
func (m *Manager) WaitReady(ctx context.Context, name string) error {
	for {
		c, err := m.svc.GetCrawler(ctx, name)
		if err != nil {
			return eris.Wrapf(err, "catalog: poll crawler %s", name)
		}
		m.observer.Polled(name, c.State)

		switch c.State {
		case StateReady:
			m.log.Info("crawler ready", zap.String("crawler", name))
			return nil
		case StateRunning, StateStopping:
			m.log.Debug("waiting for crawler",
				zap.String("crawler", name),
				zap.String("state", string(c.State)),
				zap.Duration("interval", m.cfg.PollInterval),
			)
			if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
				return eris.Wrapf(err, "catalog: poll crawler %s", name)
			}
		default:
			return &UnexpectedStateError{Name: name, State: c.State}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(d):
		return nil
	}
}
