// Package sqlite provides a SQLite-backed repository.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/kickoff/internal/adapters/repository"
	"github.com/okian/kickoff/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/kickoff/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists rosters and session assignments in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	return nil
}

const playerColumns = `id, name, goalscoring, defending, stamina_pace, control, teamwork, resilience, is_ringer, is_retired`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (model.Player, error) {
	var p model.Player
	a := &p.Attributes
	err := row.Scan(&p.ID, &p.Name, &a.Goalscoring, &a.Defending, &a.StaminaPace,
		&a.Control, &a.Teamwork, &a.Resilience, &p.IsRinger, &p.IsRetired)
	return p, err
}

// Players implements repository.RosterProvider.
func (s *Store) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Player{}, nil
	}
	query := `SELECT ` + playerColumns + ` FROM players WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.sqlDB.QueryContext(ctx, query, anyArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	found := make(map[string]model.Player, len(ids))
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}

	out := make([]model.Player, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

// ListPlayers implements repository.RosterProvider.
func (s *Store) ListPlayers(ctx context.Context) ([]model.Player, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	out := []model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return out, nil
}

// Performance implements repository.PerformanceProvider.
func (s *Store) Performance(ctx context.Context, ids []string) (map[string]model.Performance, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]model.Performance, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, power_rating, goal_threat FROM player_performance WHERE player_id IN (`+placeholders(len(ids))+`)`,
		anyArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Performance
		if err := rows.Scan(&m.PlayerID, &m.PowerRating, &m.GoalThreat); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		out[m.PlayerID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance: %w", err)
	}
	return out, nil
}

// Template implements repository.TemplateProvider.
func (s *Store) Template(ctx context.Context, teamSize int, simplified bool) (model.Formation, bool, error) {
	if err := s.ready(ctx); err != nil {
		return model.Formation{}, false, err
	}
	var f model.Formation
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT defenders, midfielders, attackers FROM formation_templates WHERE team_size = ? AND simplified = ?`,
		teamSize, simplified,
	).Scan(&f.Defenders, &f.Midfielders, &f.Attackers)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Formation{}, false, nil
	}
	if err != nil {
		return model.Formation{}, false, fmt.Errorf("get template %d: %w", teamSize, err)
	}
	return f, true, nil
}

// UpsertPlayers implements repository.RosterWriter.
func (s *Store) UpsertPlayers(ctx context.Context, players []model.Player) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, p := range players {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: empty id", repository.ErrInvalidPlayer)
		}
		if err := p.Attributes.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", repository.ErrInvalidPlayer, p.ID, err)
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO players (`+playerColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    goalscoring = excluded.goalscoring,
    defending = excluded.defending,
    stamina_pace = excluded.stamina_pace,
    control = excluded.control,
    teamwork = excluded.teamwork,
    resilience = excluded.resilience,
    is_ringer = excluded.is_ringer,
    is_retired = excluded.is_retired`)
		if err != nil {
			return fmt.Errorf("prepare upsert player: %w", err)
		}
		defer stmt.Close()
		for _, p := range players {
			a := p.Attributes
			if _, err := stmt.ExecContext(ctx, p.ID, p.Name, a.Goalscoring, a.Defending, a.StaminaPace,
				a.Control, a.Teamwork, a.Resilience, p.IsRinger, p.IsRetired); err != nil {
				return fmt.Errorf("upsert player %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpsertPerformance implements repository.RosterWriter.
func (s *Store) UpsertPerformance(ctx context.Context, metrics []model.Performance) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range metrics {
			_, err := tx.ExecContext(ctx, `
INSERT INTO player_performance (player_id, power_rating, goal_threat) VALUES (?, ?, ?)
ON CONFLICT(player_id) DO UPDATE SET
    power_rating = excluded.power_rating,
    goal_threat = excluded.goal_threat`,
				m.PlayerID, m.PowerRating, m.GoalThreat)
			if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return fmt.Errorf("%w: %s", repository.ErrNotFound, m.PlayerID)
			}
			if err != nil {
				return fmt.Errorf("upsert performance %s: %w", m.PlayerID, err)
			}
		}
		return nil
	})
}

// SetTemplate implements repository.RosterWriter.
func (s *Store) SetTemplate(ctx context.Context, teamSize int, simplified bool, f model.Formation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO formation_templates (team_size, simplified, defenders, midfielders, attackers)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(team_size, simplified) DO UPDATE SET
    defenders = excluded.defenders,
    midfielders = excluded.midfielders,
    attackers = excluded.attackers`,
		teamSize, simplified, f.Defenders, f.Midfielders, f.Attackers)
	if err != nil {
		return fmt.Errorf("set template %d: %w", teamSize, err)
	}
	return nil
}

// SaveAssignment implements repository.SessionStore. Every slot and pool row of
// the session is replaced in one transaction.
func (s *Store) SaveAssignment(ctx context.Context, a model.Assignment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(a.SessionID) == "" {
		return errors.New("session id is required")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("save assignment %s: %w", a.SessionID, err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		fa, fb := a.FormationA, a.FormationB
		_, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, a_defenders, a_midfielders, a_attackers, b_defenders, b_midfielders, b_attackers, version, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    a_defenders = excluded.a_defenders,
    a_midfielders = excluded.a_midfielders,
    a_attackers = excluded.a_attackers,
    b_defenders = excluded.b_defenders,
    b_midfielders = excluded.b_midfielders,
    b_attackers = excluded.b_attackers,
    version = excluded.version,
    updated_at = excluded.updated_at`,
			a.SessionID, fa.Defenders, fa.Midfielders, fa.Attackers,
			fb.Defenders, fb.Midfielders, fb.Attackers, a.Version, nowMillis())
		if err != nil {
			return fmt.Errorf("upsert session %s: %w", a.SessionID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM slot_bindings WHERE session_id = ?`, a.SessionID); err != nil {
			return fmt.Errorf("clear slots %s: %w", a.SessionID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_pool WHERE session_id = ?`, a.SessionID); err != nil {
			return fmt.Errorf("clear pool %s: %w", a.SessionID, err)
		}
		for _, t := range []model.Team{model.TeamA, model.TeamB} {
			for _, slot := range a.Slots(t) {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO slot_bindings (session_id, team, slot, position, player_id) VALUES (?, ?, ?, ?, ?)`,
					a.SessionID, t.String(), slot.Number, slot.Position.String(), nullable(slot.PlayerID),
				); err != nil {
					return fmt.Errorf("insert slot %s/%d: %w", t, slot.Number, err)
				}
			}
		}
		for _, id := range a.Unassigned {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_pool (session_id, player_id) VALUES (?, ?)`, a.SessionID, id,
			); err != nil {
				return fmt.Errorf("insert pool player %s: %w", id, err)
			}
		}
		return nil
	})
}

// SaveBindings implements repository.SessionStore. Target slots are emptied
// before they are filled so a swap never trips the per-session player index.
// Displaced players that end up without a slot join the session pool.
func (s *Store) SaveBindings(ctx context.Context, sessionID string, bindings []model.SlotBinding) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var version uint64
		err := tx.QueryRowContext(ctx, `SELECT version FROM sessions WHERE id = ?`, sessionID).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repository.ErrUnknownSession, sessionID)
		}
		if err != nil {
			return fmt.Errorf("get session %s: %w", sessionID, err)
		}

		var displaced []string
		for _, b := range bindings {
			var current sql.NullString
			err := tx.QueryRowContext(ctx,
				`SELECT player_id FROM slot_bindings WHERE session_id = ? AND team = ? AND slot = ?`,
				sessionID, b.Team.String(), b.Slot,
			).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s/%d", repository.ErrUnknownSlot, b.Team, b.Slot)
			}
			if err != nil {
				return fmt.Errorf("get slot %s/%d: %w", b.Team, b.Slot, err)
			}
			if current.Valid {
				displaced = append(displaced, current.String)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE slot_bindings SET player_id = NULL WHERE session_id = ? AND team = ? AND slot = ?`,
				sessionID, b.Team.String(), b.Slot,
			); err != nil {
				return fmt.Errorf("empty slot %s/%d: %w", b.Team, b.Slot, err)
			}
		}

		for _, b := range bindings {
			_, err := tx.ExecContext(ctx,
				`UPDATE slot_bindings SET player_id = ? WHERE session_id = ? AND team = ? AND slot = ?`,
				nullable(b.PlayerID), sessionID, b.Team.String(), b.Slot,
			)
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s at %s/%d", repository.ErrBindingConflict, b.PlayerID, b.Team, b.Slot)
			}
			if err != nil {
				return fmt.Errorf("bind slot %s/%d: %w", b.Team, b.Slot, err)
			}
			if b.PlayerID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM session_pool WHERE session_id = ? AND player_id = ?`, sessionID, b.PlayerID,
			); err != nil {
				return fmt.Errorf("unpool %s: %w", b.PlayerID, err)
			}
		}

		for _, id := range displaced {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO session_pool (session_id, player_id)
SELECT ?, ? WHERE NOT EXISTS (
    SELECT 1 FROM slot_bindings WHERE session_id = ? AND player_id = ?
)`, sessionID, id, sessionID, id); err != nil {
				return fmt.Errorf("pool %s: %w", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET version = ?, updated_at = ? WHERE id = ?`, version+1, nowMillis(), sessionID,
		); err != nil {
			return fmt.Errorf("bump session %s: %w", sessionID, err)
		}
		return nil
	})
}

// LoadAssignment implements repository.SessionStore.
func (s *Store) LoadAssignment(ctx context.Context, sessionID string) (model.Assignment, error) {
	if err := s.ready(ctx); err != nil {
		return model.Assignment{}, err
	}
	var fa, fb model.Formation
	var version uint64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT a_defenders, a_midfielders, a_attackers, b_defenders, b_midfielders, b_attackers, version
FROM sessions WHERE id = ?`, sessionID,
	).Scan(&fa.Defenders, &fa.Midfielders, &fa.Attackers, &fb.Defenders, &fb.Midfielders, &fb.Attackers, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Assignment{}, fmt.Errorf("%w: %s", repository.ErrUnknownSession, sessionID)
	}
	if err != nil {
		return model.Assignment{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	a := model.NewAssignment(sessionID, fa, fb)
	a.Version = version
	a.Unassigned = []string{}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT team, slot, player_id FROM slot_bindings WHERE session_id = ? AND player_id IS NOT NULL`, sessionID)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("query slots %s: %w", sessionID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			teamName string
			slot     int
			playerID string
		)
		if err := rows.Scan(&teamName, &slot, &playerID); err != nil {
			return model.Assignment{}, fmt.Errorf("scan slot: %w", err)
		}
		team, err := model.ParseTeam(teamName)
		if err != nil {
			return model.Assignment{}, err
		}
		slots := a.Slots(team)
		if slot < 1 || slot > len(slots) {
			return model.Assignment{}, fmt.Errorf("%w: %s/%d", repository.ErrUnknownSlot, team, slot)
		}
		slots[slot-1].PlayerID = playerID
	}
	if err := rows.Err(); err != nil {
		return model.Assignment{}, fmt.Errorf("iterate slots: %w", err)
	}

	pool, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id FROM session_pool WHERE session_id = ? ORDER BY player_id`, sessionID)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("query pool %s: %w", sessionID, err)
	}
	defer pool.Close()
	for pool.Next() {
		var id string
		if err := pool.Scan(&id); err != nil {
			return model.Assignment{}, fmt.Errorf("scan pool: %w", err)
		}
		a.Unassigned = append(a.Unassigned, id)
	}
	if err := pool.Err(); err != nil {
		return model.Assignment{}, fmt.Errorf("iterate pool: %w", err)
	}
	return a, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anyArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE)
}

func isConstraint(err error, codes ...int) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

var _ repository.Store = (*Store)(nil)
