// Package balance splits a player pool into two teams and scores how even they are.
//
// The ability and performance strategies share one pipeline:
//  1. role assignment: defenders by Defending, attackers by Goalscoring, the rest midfield
//  2. snake draft inside each role group by the strategy's rating
//  3. best-improvement local search swapping same-position players across teams
//     until no swap lowers the imbalance or the iteration cap is hit
//
// Random skips all of it and shuffles.
package balance

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/formation"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
	"github.com/okian/kickoff/pkg/logger"
	"github.com/okian/kickoff/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultIterationCap = 100
	minPoolSize         = 2
	improvementEpsilon  = 1e-12
)

// FormationDeriver yields the formation for one team size.
type FormationDeriver interface {
	Derive(ctx context.Context, teamSize int, simplified bool) (model.Formation, error)
}

// Request is one balance run.
type Request struct {
	Pool     []model.Player
	SizeA    int
	SizeB    int
	Strategy Strategy
	// Weights overrides the engine's group weights when non-zero.
	Weights scoring.GroupWeights
	// Metrics feeds the performance strategy; ignored otherwise.
	Metrics map[string]model.Performance
}

// GroupStats maps position group -> feature name -> value.
type GroupStats map[string]map[string]float64

// Stats is the balance result. Score fields are meaningful only when Scored is true.
type Stats struct {
	Strategy             Kind        `json:"strategy"`
	TeamAStats           GroupStats  `json:"team_a_stats"`
	TeamBStats           GroupStats  `json:"team_b_stats"`
	DiffsByPositionGroup GroupStats  `json:"diffs_by_position_group"`
	BalanceScore         float64     `json:"balance_score"`
	QualityBand          QualityBand `json:"quality_band,omitempty"`
	Scored               bool        `json:"scored"`
	Iterations           int         `json:"iterations"`
}

// Result is a complete two-team split.
type Result struct {
	FormationA model.Formation
	FormationB model.Formation
	TeamA      map[model.Position][]model.Player
	TeamB      map[model.Position][]model.Player
	Stats      Stats
}

// Assignment lays the split out as slots. Within a band, players fill slots in group order.
func (r Result) Assignment(sessionID string) model.Assignment {
	a := model.NewAssignment(sessionID, r.FormationA, r.FormationB)
	fill := func(slots []model.Slot, groups map[model.Position][]model.Player) {
		next := make(map[model.Position]int, len(model.Positions))
		for i := range slots {
			pos := slots[i].Position
			if idx := next[pos]; idx < len(groups[pos]) {
				slots[i].PlayerID = groups[pos][idx].ID
				next[pos] = idx + 1
			}
		}
	}
	fill(a.TeamA, r.TeamA)
	fill(a.TeamB, r.TeamB)
	return a
}

// Engine runs balance requests. It is safe for concurrent use.
type Engine struct {
	deriver      FormationDeriver
	weights      scoring.GroupWeights
	bands        Bands
	iterationCap int
	logger       logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDeriver sets the formation deriver.
func WithDeriver(d FormationDeriver) Option {
	return func(e *Engine) {
		if d != nil {
			e.deriver = d
		}
	}
}

// WithGroupWeights sets the default per-group weights.
func WithGroupWeights(w scoring.GroupWeights) Option {
	return func(e *Engine) {
		if w.Valid() {
			e.weights = w
		}
	}
}

// WithBands sets the quality band thresholds.
func WithBands(b Bands) Option {
	return func(e *Engine) {
		if b.Valid() {
			e.bands = b
		}
	}
}

// WithIterationCap bounds the local search.
func WithIterationCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.iterationCap = n
		}
	}
}

// WithSeed makes the random strategy reproducible. Zero keeps the time-based seed.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		if seed != 0 {
			e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // team shuffles are not security sensitive
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		deriver:      formation.NewDeriver(),
		weights:      scoring.DefaultGroupWeights(),
		bands:        DefaultBands(),
		iterationCap: defaultIterationCap,
		logger:       logger.Nop(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // team shuffles are not security sensitive
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bands returns the configured quality thresholds.
func (e *Engine) Bands() Bands { return e.bands }

// Balance assigns every pool player to exactly one slot. Validation failures
// are returned before any work and wrap errs.ErrValidation.
func (e *Engine) Balance(ctx context.Context, req Request) (Result, error) {
	const op = "balance.balance"
	start := time.Now()
	kind := Kind("none")
	if req.Strategy != nil {
		kind = req.Strategy.Kind()
	}

	res, err := e.balance(ctx, req)
	metrics.RecordBalanceLatency(string(kind), float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordBalanceRun(string(kind), "error")
		e.logger.Warn(ctx, "balance rejected",
			logger.String("strategy", string(kind)),
			logger.Int("pool", len(req.Pool)),
			logger.Error(err),
		)
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordBalanceRun(string(kind), "ok")
	if res.Stats.Scored {
		metrics.RecordBalanceScore(string(kind), res.Stats.BalanceScore)
		metrics.RecordQualityBand(string(res.Stats.QualityBand))
	}
	e.logger.Debug(ctx, "balance complete",
		logger.String("strategy", string(kind)),
		logger.String("formationA", res.FormationA.String()),
		logger.String("formationB", res.FormationB.String()),
		logger.Float64("score", res.Stats.BalanceScore),
		logger.Int("iterations", res.Stats.Iterations),
	)
	return res, nil
}

func (e *Engine) balance(ctx context.Context, req Request) (Result, error) {
	weights, featureWeights, err := e.validate(req)
	if err != nil {
		return Result{}, errs.Wrap("validate", errs.ErrValidation, err)
	}

	fa, err := e.deriver.Derive(ctx, req.SizeA, req.SizeA == formation.SimplifiedTeamSize)
	if err != nil {
		return Result{}, err
	}
	fb, err := e.deriver.Derive(ctx, req.SizeB, req.SizeB == formation.SimplifiedTeamSize)
	if err != nil {
		return Result{}, err
	}

	res := Result{FormationA: fa, FormationB: fb}
	switch s := req.Strategy.(type) {
	case Random:
		res.TeamA, res.TeamB = e.shuffle(req.Pool, fa, fb)
	case Ability:
		res.Stats.Iterations, err = e.optimize(ctx, &res, req.Pool, scoring.AbilityFeatures, model.AttributeCount, weights, nil)
	case Performance:
		features := scoring.PerformanceFeatures(req.Metrics)
		res.Stats.Iterations, err = e.optimize(ctx, &res, req.Pool, features, scoring.PerformanceFeatureCount, weights, featureWeights)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownStrategy, s)
	}
	if err != nil {
		return Result{}, err
	}

	res.Stats.Strategy = req.Strategy.Kind()
	e.describe(&res)

	if err := checkCoverage(res, req.Pool); err != nil {
		return Result{}, err
	}
	return res, nil
}

// validate checks every precondition and resolves weights.
func (e *Engine) validate(req Request) (scoring.GroupWeights, []float64, error) {
	if req.Strategy == nil {
		return scoring.GroupWeights{}, nil, fmt.Errorf("%w: none given", ErrUnknownStrategy)
	}
	if len(req.Pool) < minPoolSize {
		return scoring.GroupWeights{}, nil, fmt.Errorf("%w: need at least %d players, have %d", ErrPoolTooSmall, minPoolSize, len(req.Pool))
	}
	simplifiedA, err := formation.ValidateTeamSize(req.SizeA)
	if err != nil {
		return scoring.GroupWeights{}, nil, fmt.Errorf("team A: %w", err)
	}
	simplifiedB, err := formation.ValidateTeamSize(req.SizeB)
	if err != nil {
		return scoring.GroupWeights{}, nil, fmt.Errorf("team B: %w", err)
	}

	var featureWeights []float64
	switch s := req.Strategy.(type) {
	case Ability:
		if req.SizeA != req.SizeB {
			return scoring.GroupWeights{}, nil, fmt.Errorf("%w: ability needs equal sizes, got %dv%d; use performance or random",
				ErrStrategyNotAllowed, req.SizeA, req.SizeB)
		}
		if simplifiedA && simplifiedB {
			return scoring.GroupWeights{}, nil, fmt.Errorf("%w: ability is unavailable for simplified %dv%d; use performance or random",
				ErrStrategyNotAllowed, req.SizeA, req.SizeB)
		}
	case Performance:
		if featureWeights, err = s.weights(); err != nil {
			return scoring.GroupWeights{}, nil, err
		}
	}

	seen := make(map[string]struct{}, len(req.Pool))
	for _, p := range req.Pool {
		if p.ID == "" {
			return scoring.GroupWeights{}, nil, fmt.Errorf("%w: player with empty id", ErrDuplicatePlayer)
		}
		if _, dup := seen[p.ID]; dup {
			return scoring.GroupWeights{}, nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
		}
		seen[p.ID] = struct{}{}
		if err := p.Attributes.Validate(); err != nil {
			return scoring.GroupWeights{}, nil, fmt.Errorf("player %s: %w", p.ID, err)
		}
	}

	slots := req.SizeA + req.SizeB
	switch {
	case len(req.Pool) < slots:
		short := slots - len(req.Pool)
		return scoring.GroupWeights{}, nil, fmt.Errorf("%w: %dv%d needs %d players, pool has %d (short by %d; team B would have %d of %d)",
			ErrPoolTooSmall, req.SizeA, req.SizeB, slots, len(req.Pool), short, max(0, len(req.Pool)-req.SizeA), req.SizeB)
	case len(req.Pool) > slots:
		return scoring.GroupWeights{}, nil, fmt.Errorf("%w: %d players for %d slots", ErrPoolTooLarge, len(req.Pool), slots)
	}

	weights := e.weights
	if req.Weights != (scoring.GroupWeights{}) {
		if !req.Weights.Valid() {
			return scoring.GroupWeights{}, nil, fmt.Errorf("%w: group weights %+v", ErrNegativeWeight, req.Weights)
		}
		weights = req.Weights
	}
	return weights, featureWeights, nil
}

// shuffle fills A's slots then B's from a uniformly shuffled pool.
func (e *Engine) shuffle(pool []model.Player, fa, fb model.Formation) (map[model.Position][]model.Player, map[model.Position][]model.Player) {
	players := slices.Clone(pool)
	e.mu.Lock()
	e.rng.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })
	e.mu.Unlock()

	place := func(f model.Formation, ps []model.Player) map[model.Position][]model.Player {
		groups := make(map[model.Position][]model.Player, len(model.Positions))
		for i, p := range ps {
			pos, _ := f.PositionOf(i + 1)
			groups[pos] = append(groups[pos], p)
		}
		return groups
	}
	return place(fa, players[:fa.Size()]), place(fb, players[fa.Size():])
}

// optimize runs role assignment, the snake draft and the local search.
func (e *Engine) optimize(
	ctx context.Context,
	res *Result,
	pool []model.Player,
	features scoring.FeatureFunc,
	dims int,
	weights scoring.GroupWeights,
	featureWeights []float64,
) (int, error) {
	rating := func(p model.Player) float64 {
		var total float64
		for i, x := range features(p) {
			w := 1.0
			if featureWeights != nil {
				w = featureWeights[i]
			}
			total += w * x
		}
		return total
	}

	roles := assignRoles(pool, res.FormationA, res.FormationB)
	res.TeamA, res.TeamB = snakeDraft(roles, res.FormationA, res.FormationB, rating)

	scorer := scoring.NewGroupScorer(scoring.WithFeatures(features, dims), scoring.WithNormalization(scoring.Mean))
	objective := func() float64 {
		return scoring.Imbalance(scorer.ScoreTeam(res.TeamA), scorer.ScoreTeam(res.TeamB), weights, featureWeights)
	}

	current := objective()
	iterations := 0
	for iterations < e.iterationCap {
		if err := ctx.Err(); err != nil {
			return iterations, err
		}
		best := current
		bestPos, bestI, bestJ := model.Defender, -1, -1
		for _, pos := range model.Positions {
			ga, gb := res.TeamA[pos], res.TeamB[pos]
			for i := range ga {
				for j := range gb {
					ga[i], gb[j] = gb[j], ga[i]
					if s := objective(); s < best-improvementEpsilon {
						best, bestPos, bestI, bestJ = s, pos, i, j
					}
					ga[i], gb[j] = gb[j], ga[i]
				}
			}
		}
		if bestI < 0 {
			break
		}
		ga, gb := res.TeamA[bestPos], res.TeamB[bestPos]
		ga[bestI], gb[bestJ] = gb[bestJ], ga[bestI]
		current = best
		iterations++
	}
	res.Stats.BalanceScore = current
	res.Stats.Scored = true
	return iterations, nil
}

// assignRoles picks the combined defender and attacker quotas for both teams.
func assignRoles(pool []model.Player, fa, fb model.Formation) map[model.Position][]model.Player {
	byDefending := slices.Clone(pool)
	slices.SortStableFunc(byDefending, func(a, b model.Player) int {
		return cmp.Or(
			cmp.Compare(b.Attributes.Defending, a.Attributes.Defending),
			cmp.Compare(a.Attributes.Goalscoring, b.Attributes.Goalscoring),
			cmp.Compare(a.ID, b.ID),
		)
	})
	defenders := fa.Defenders + fb.Defenders
	rest := byDefending[defenders:]

	byGoalscoring := slices.Clone(rest)
	slices.SortStableFunc(byGoalscoring, func(a, b model.Player) int {
		return cmp.Or(
			cmp.Compare(b.Attributes.Goalscoring, a.Attributes.Goalscoring),
			cmp.Compare(a.ID, b.ID),
		)
	})
	attackers := fa.Attackers + fb.Attackers

	return map[model.Position][]model.Player{
		model.Defender:   byDefending[:defenders],
		model.Attacker:   byGoalscoring[:attackers],
		model.Midfielder: byGoalscoring[attackers:],
	}
}

// snakeDraft deals each role group A,B,B,A,... by descending rating, honouring each team's band size.
func snakeDraft(
	roles map[model.Position][]model.Player,
	fa, fb model.Formation,
	rating func(model.Player) float64,
) (map[model.Position][]model.Player, map[model.Position][]model.Player) {
	teamA := make(map[model.Position][]model.Player, len(model.Positions))
	teamB := make(map[model.Position][]model.Player, len(model.Positions))
	for _, pos := range model.Positions {
		group := slices.Clone(roles[pos])
		slices.SortStableFunc(group, func(a, b model.Player) int {
			return cmp.Or(cmp.Compare(rating(b), rating(a)), cmp.Compare(a.ID, b.ID))
		})
		capA, capB := fa.Count(pos), fb.Count(pos)
		for i, p := range group {
			toA := i%4 == 0 || i%4 == 3
			switch {
			case toA && len(teamA[pos]) >= capA:
				toA = false
			case !toA && len(teamB[pos]) >= capB:
				toA = true
			}
			if toA {
				teamA[pos] = append(teamA[pos], p)
			} else {
				teamB[pos] = append(teamB[pos], p)
			}
		}
	}
	return teamA, teamB
}

// describe fills the display stats: ability sums per group and A-B diffs.
func (e *Engine) describe(res *Result) {
	sums := scoring.NewGroupScorer()
	a, b := sums.ScoreTeam(res.TeamA), sums.ScoreTeam(res.TeamB)
	res.Stats.TeamAStats = groupStats(a, model.AttributeNames[:])
	res.Stats.TeamBStats = groupStats(b, model.AttributeNames[:])
	diffs := make(map[model.Position]scoring.Vector, len(model.Positions))
	for _, pos := range model.Positions {
		diffs[pos] = a[pos].Sub(b[pos])
	}
	res.Stats.DiffsByPositionGroup = groupStats(diffs, model.AttributeNames[:])

	if res.Stats.Scored {
		res.Stats.QualityBand = e.bands.Classify(res.Stats.BalanceScore)
	}
}

func groupStats(vectors map[model.Position]scoring.Vector, names []string) GroupStats {
	out := make(GroupStats, len(vectors))
	for pos, v := range vectors {
		row := make(map[string]float64, len(names))
		for i, name := range names {
			if i < len(v) {
				row[name] = v[i]
			}
		}
		out[pos.Group()] = row
	}
	return out
}

// checkCoverage enforces the postcondition: every pool player in exactly one slot.
func checkCoverage(res Result, pool []model.Player) error {
	a := res.Assignment("")
	if err := a.Validate(); err != nil {
		return err
	}
	placed := len(a.PlayerIDs(model.TeamA)) + len(a.PlayerIDs(model.TeamB))
	if placed != len(pool) {
		return fmt.Errorf("placed %d of %d players", placed, len(pool))
	}
	return nil
}
