// Package service wires the balancing engine, the lineup stores and storage
// into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/kickoff/internal/adapters/mq/queue"
	"github.com/okian/kickoff/internal/adapters/mq/worker"
	"github.com/okian/kickoff/internal/adapters/repository"
	"github.com/okian/kickoff/internal/domain/balance"
	"github.com/okian/kickoff/internal/domain/compare"
	"github.com/okian/kickoff/internal/domain/dedupe"
	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/formation"
	"github.com/okian/kickoff/internal/domain/lineup"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
	"github.com/okian/kickoff/pkg/logger"
	"github.com/okian/kickoff/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// drainTimeout bounds how long Stop waits for queued reports to be applied.
const drainTimeout = 10 * time.Second

// BalanceRequest asks for a pool of roster players to be split into two teams.
type BalanceRequest struct {
	PlayerIDs []string
	SizeA     int
	SizeB     int
	Strategy  balance.Strategy
	// Weights overrides the configured group weights when non-zero.
	Weights scoring.GroupWeights
}

// Balanced is a freshly balanced session.
type Balanced struct {
	Assignment model.Assignment `json:"assignment"`
	Stats      balance.Stats    `json:"stats"`
}

// Comparison is the outcome of CompareTeams. Stats is nil while Applicable is false.
type Comparison struct {
	Applicable bool           `json:"applicable"`
	Stats      *compare.Stats `json:"stats,omitempty"`
}

// Service implements the API dependencies for balancing sessions.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deriver    *formation.Deriver
	engine     *balance.Engine
	calculator *compare.Calculator
	deduper    dedupe.Deduper
	sessions   map[string]*lineup.Store

	// Report pipeline
	reports       *queue.InMemoryQueue
	reportDeduper dedupe.Deduper
	blender       *worker.Blender
	pool          *worker.Pool

	// Configuration
	groupWeights    scoring.GroupWeights
	bands           balance.Bands
	performance     balance.Performance
	iterationCap    int
	randomSeed      int64
	percentageScale float64
	persistTimeout  time.Duration
	dedupeSize      int
	templates       formation.StaticTemplates
	newID           func() string
	reportWorkers   int
	queueCapacity   int
	blendFactor     float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the roster, template and session storage.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGroupWeights sets the default position-group weights.
func WithGroupWeights(w scoring.GroupWeights) Option {
	return func(s *Service) {
		if w.Valid() {
			s.groupWeights = w
		}
	}
}

// WithBands sets the quality band thresholds.
func WithBands(b balance.Bands) Option {
	return func(s *Service) {
		if b.Valid() {
			s.bands = b
		}
	}
}

// WithPerformanceWeights sets the weights used when a performance request carries none.
func WithPerformanceWeights(p balance.Performance) Option {
	return func(s *Service) {
		if p.PowerWeight >= 0 && p.GoalWeight >= 0 && p.PowerWeight+p.GoalWeight > 0 {
			s.performance = p
		}
	}
}

// WithIterationCap bounds the engine's local search.
func WithIterationCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.iterationCap = n
		}
	}
}

// WithRandomSeed makes the random strategy reproducible. Zero seeds from the clock.
func WithRandomSeed(seed int64) Option {
	return func(s *Service) {
		s.randomSeed = seed
	}
}

// WithPercentageScale sets k for the balance percentage.
func WithPercentageScale(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.percentageScale = k
		}
	}
}

// WithPersistTimeout bounds each persistence call made by a session.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithDedupeSize sets how many move request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTemplates sets formation overrides from configuration. They take
// precedence over templates held by the store.
func WithTemplates(t map[string]model.Formation) Option {
	return func(s *Service) {
		s.templates = formation.StaticTemplates(t)
	}
}

// WithReportWorkers sets how many workers apply performance reports.
func WithReportWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reportWorkers = n
		}
	}
}

// WithReportQueueCapacity bounds the number of reports waiting for a worker.
func WithReportQueueCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithBlendFactor sets the weight a new report carries against a player's history.
func WithBlendFactor(alpha float64) Option {
	return func(s *Service) {
		if alpha > 0 && alpha <= 1 {
			s.blendFactor = alpha
		}
	}
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:           repository.NewMemoryStore(),
		sessions:        make(map[string]*lineup.Store),
		groupWeights:    scoring.DefaultGroupWeights(),
		bands:           balance.DefaultBands(),
		performance:     balance.Performance{PowerWeight: balance.DefaultPowerWeight, GoalWeight: balance.DefaultGoalWeight},
		iterationCap:    100,
		percentageScale: 100,
		persistTimeout:  5 * time.Second,
		dedupeSize:      10_000,
		newID:           uuid.NewString,
		reportWorkers:   2,
		queueCapacity:   1024,
		blendFactor:     worker.DefaultBlendFactor,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the engine components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.deriver = formation.NewDeriver(
		formation.WithTemplates(formation.ChainTemplates{s.templates, s.store}),
	)
	engineOpts := []balance.Option{
		balance.WithDeriver(s.deriver),
		balance.WithGroupWeights(s.groupWeights),
		balance.WithBands(s.bands),
		balance.WithIterationCap(s.iterationCap),
		balance.WithLogger(s.logger.Named("balance")),
	}
	if s.randomSeed != 0 {
		engineOpts = append(engineOpts, balance.WithSeed(s.randomSeed))
	}
	s.engine = balance.NewEngine(engineOpts...)
	s.calculator = compare.NewCalculator(
		compare.WithBands(s.bands),
		compare.WithGroupWeights(s.groupWeights),
		compare.WithPercentageScale(s.percentageScale),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.reports = queue.NewInMemoryQueue(queue.WithCapacity(s.queueCapacity))
	s.reportDeduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.blender = worker.NewBlender(s.store, s.blendFactor)
	s.pool = worker.NewPool(s.reportWorkers, s.reports, s.blender, worker.WithLogger(s.logger.Named("reports")))
	// Workers outlive the start context; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "balancing service started",
		logger.Int("iterationCap", s.iterationCap),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("templates", len(s.templates)),
		logger.Int("reportWorkers", s.pool.Size()),
	)
	return nil
}

// Stop drains queued reports and releases storage. Sessions are dropped from
// memory; they can be reloaded from storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "report workers did not drain", logger.Int("queued", s.reports.Len(ctx)), logger.Error(err))
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "close store failed", logger.Error(err))
	}
	s.sessions = make(map[string]*lineup.Store)
	metrics.UpdateActiveSessions(0)

	s.started = false
	s.logger.Info(context.Background(), "balancing service stopped")
}

// DeriveFormation returns the formation for one team size.
func (s *Service) DeriveFormation(ctx context.Context, teamSize int) (model.Formation, error) {
	const op = "service.derive_formation"
	if err := s.ready(); err != nil {
		return model.Formation{}, err
	}
	simplified, err := formation.ValidateTeamSize(teamSize)
	if err != nil {
		return model.Formation{}, errs.Wrap(op, errs.ErrValidation, err)
	}
	return s.deriver.Derive(ctx, teamSize, simplified)
}

// BalanceTeams balances the requested players into a new session. The session
// is only registered once its initial assignment has been persisted.
func (s *Service) BalanceTeams(ctx context.Context, req BalanceRequest) (Balanced, error) {
	const op = "service.balance_teams"
	if err := s.ready(); err != nil {
		return Balanced{}, err
	}

	res, err := s.balance(ctx, op, req)
	if err != nil {
		return Balanced{}, err
	}

	id := s.newID()
	a := res.Assignment(id)
	a.Version = 1
	ls, err := lineup.NewStore(a, s.lineupOptions()...)
	if err != nil {
		return Balanced{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ls.Save(ctx); err != nil {
		return Balanced{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	s.sessions[id] = ls
	active := len(s.sessions)
	s.mu.Unlock()
	metrics.UpdateActiveSessions(active)

	s.logger.Info(ctx, "session balanced",
		logger.String("session", id),
		logger.String("strategy", string(res.Stats.Strategy)),
		logger.String("formationA", res.FormationA.String()),
		logger.String("formationB", res.FormationB.String()),
		logger.String("band", string(res.Stats.QualityBand)),
	)
	return Balanced{Assignment: ls.Snapshot(), Stats: res.Stats}, nil
}

// Rebalance re-runs the engine and replaces an existing session's assignment.
func (s *Service) Rebalance(ctx context.Context, sessionID string, req BalanceRequest) (Balanced, error) {
	const op = "service.rebalance"
	if err := s.ready(); err != nil {
		return Balanced{}, err
	}
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return Balanced{}, err
	}
	res, err := s.balance(ctx, op, req)
	if err != nil {
		return Balanced{}, err
	}
	a, err := ls.Replace(ctx, res.Assignment(sessionID))
	if err != nil {
		return Balanced{}, fmt.Errorf("%s: %w", op, err)
	}
	return Balanced{Assignment: a, Stats: res.Stats}, nil
}

// MoveOrSwap applies one manual edit to a session.
func (s *Service) MoveOrSwap(ctx context.Context, sessionID string, req lineup.MoveRequest) (model.Assignment, error) {
	if err := s.ready(); err != nil {
		return model.Assignment{}, err
	}
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return model.Assignment{}, err
	}
	return ls.MoveOrSwap(ctx, req)
}

// ClearAssignment returns every player of a session to the pool.
func (s *Service) ClearAssignment(ctx context.Context, sessionID string) (model.Assignment, error) {
	if err := s.ready(); err != nil {
		return model.Assignment{}, err
	}
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return model.Assignment{}, err
	}
	return ls.Clear(ctx)
}

// Session returns the current assignment of a session.
func (s *Service) Session(ctx context.Context, sessionID string) (model.Assignment, error) {
	if err := s.ready(); err != nil {
		return model.Assignment{}, err
	}
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return model.Assignment{}, err
	}
	return ls.Snapshot(), nil
}

// CompareTeams compares both teams of a session as currently placed.
// Applicable is false while either team does not fill its formation.
func (s *Service) CompareTeams(ctx context.Context, sessionID string, weights scoring.GroupWeights) (Comparison, error) {
	const op = "service.compare_teams"
	if err := s.ready(); err != nil {
		return Comparison{}, err
	}
	if weights != (scoring.GroupWeights{}) && !weights.Valid() {
		return Comparison{}, errs.New(op, errs.ErrValidation, "group weights must be non-negative with a positive sum")
	}
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return Comparison{}, err
	}
	a := ls.Snapshot()

	ids := append(a.PlayerIDs(model.TeamA), a.PlayerIDs(model.TeamB)...)
	players, err := s.store.Players(ctx, ids)
	if err != nil {
		return Comparison{}, fmt.Errorf("%s: %w", op, err)
	}
	byID := make(map[string]model.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	side := func(t model.Team) compare.Side {
		groups := make(map[model.Position][]model.Player, len(model.Positions))
		for pos, ids := range a.Groups(t) {
			for _, id := range ids {
				groups[pos] = append(groups[pos], byID[id])
			}
		}
		return compare.Side{Formation: a.Formation(t), Groups: groups}
	}

	stats, ok := s.calculator.Compare(side(model.TeamA), side(model.TeamB), weights)
	if !ok {
		return Comparison{Applicable: false}, nil
	}
	return Comparison{Applicable: true, Stats: stats}, nil
}

// SubmitReport validates r and queues it for the report workers. It returns
// false without queueing when the report id was already accepted.
func (s *Service) SubmitReport(ctx context.Context, r model.PerformanceReport) (bool, error) {
	const op = "service.submit_report"
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := r.Validate(); err != nil {
		return false, errs.Wrap(op, errs.ErrValidation, err)
	}
	if _, err := s.store.Players(ctx, []string{r.PlayerID}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, errs.Wrap(op, errs.ErrNotFound, err)
		}
		return false, errs.Wrap(op, errs.ErrPersistence, err)
	}

	key := dedupe.Key("reports", r.ReportID)
	if s.reportDeduper.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "duplicate report", logger.String("report", r.ReportID))
		return false, nil
	}
	if err := s.reports.Enqueue(ctx, r); err != nil {
		s.reportDeduper.Unrecord(ctx, key)
		switch {
		case errors.Is(err, queue.ErrFull):
			return false, errs.Wrap(op, errs.ErrOverloaded, err)
		case errors.Is(err, queue.ErrClosed):
			return false, fmt.Errorf("%s: %w", op, ErrNotStarted)
		default:
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	return true, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"iterationCap": s.iterationCap,
		"dedupeSize":   s.dedupeSize,
	}

	if s.started {
		stats["activeSessions"] = len(s.sessions)
		stats["trackedMoves"] = s.deduper.Size()
		stats["queuedReports"] = s.reports.Len(context.Background())
		stats["appliedReports"] = s.blender.Applied()
		stats["reportWorkers"] = s.pool.Size()
		metrics.UpdateActiveSessions(len(s.sessions))
	}

	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// balance fetches the roster (and metrics for the performance strategy) concurrently and runs the engine.
func (s *Service) balance(ctx context.Context, op string, req BalanceRequest) (balance.Result, error) {
	if req.Strategy == nil {
		return balance.Result{}, errs.New(op, errs.ErrValidation, "%v: none given", balance.ErrUnknownStrategy)
	}
	strategy := req.Strategy
	if p, ok := strategy.(balance.Performance); ok && p.PowerWeight == 0 && p.GoalWeight == 0 {
		strategy = s.performance
	}
	_, wantMetrics := strategy.(balance.Performance)

	var (
		pool []model.Player
		perf map[string]model.Performance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pool, err = s.store.Players(gctx, req.PlayerIDs)
		if errors.Is(err, repository.ErrNotFound) {
			return errs.Wrap("roster", errs.ErrValidation, err)
		}
		return err
	})
	if wantMetrics {
		g.Go(func() error {
			var err error
			perf, err = s.store.Performance(gctx, req.PlayerIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return balance.Result{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.engine.Balance(ctx, balance.Request{
		Pool:     pool,
		SizeA:    req.SizeA,
		SizeB:    req.SizeB,
		Strategy: strategy,
		Weights:  req.Weights,
		Metrics:  perf,
	})
}

// session returns the live store for id, loading it from storage after a restart.
func (s *Service) session(ctx context.Context, id string) (*lineup.Store, error) {
	const op = "service.session"
	s.mu.RLock()
	ls, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return ls, nil
	}

	a, err := s.store.LoadAssignment(ctx, id)
	if errors.Is(err, repository.ErrUnknownSession) {
		return nil, errs.Wrap(op, errs.ErrNotFound, err)
	}
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrPersistence, err)
	}
	loaded, err := lineup.NewStore(a, s.lineupOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.sessions[id]; ok {
		return ls, nil
	}
	s.sessions[id] = loaded
	metrics.UpdateActiveSessions(len(s.sessions))
	s.logger.Debug(ctx, "session loaded from storage", logger.String("session", id), logger.Uint64("version", a.Version))
	return loaded, nil
}

func (s *Service) lineupOptions() []lineup.Option {
	return []lineup.Option{
		lineup.WithPersister(s.store),
		lineup.WithDeduper(s.deduper),
		lineup.WithPersistTimeout(s.persistTimeout),
		lineup.WithLogger(s.logger.Named("lineup")),
	}
}
