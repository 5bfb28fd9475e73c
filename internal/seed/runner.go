package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/kickoff/internal/adapters/repository"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/pkg/logger"
)

const (
	defaultBatchSize    = 500
	directoryPermission = 0750
)

// Run generates the roster described by config and writes it through w.
func Run(ctx context.Context, config *Config, w repository.RosterWriter) (*Stats, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	batch := config.BatchSize
	if batch == 0 {
		batch = defaultBatchSize
	}

	stats := &Stats{StartTime: time.Now()}
	logger.Get().Info(ctx, "seeding roster",
		logger.Int("players", config.Players),
		logger.Any("seed", config.Seed),
		logger.Bool("performance", config.Performance),
		logger.Int("batchSize", batch))

	gen := NewGenerator(config.Seed)
	players := gen.Players(config.Players)
	for _, p := range players {
		if p.IsRinger {
			stats.Ringers++
		}
		if p.IsRetired {
			stats.Retired++
		}
	}
	stats.PlayersGenerated = len(players)

	for start := 0; start < len(players); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("seeding cancelled: %w", err)
		}
		end := min(start+batch, len(players))
		if err := w.UpsertPlayers(ctx, players[start:end]); err != nil {
			return nil, fmt.Errorf("failed to write players %d-%d: %w", start, end, err)
		}
		stats.Batches++
	}

	if config.Performance {
		rows := gen.Performance(players)
		for start := 0; start < len(rows); start += batch {
			end := min(start+batch, len(rows))
			if err := w.UpsertPerformance(ctx, rows[start:end]); err != nil {
				return nil, fmt.Errorf("failed to write performance %d-%d: %w", start, end, err)
			}
		}
		stats.PerformanceRows = len(rows)
	}

	if config.OutputFile != "" {
		if err := saveRosterToFile(ctx, config.OutputFile, players); err != nil {
			return nil, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveRosterToFile writes the generated players as a JSON array.
func saveRosterToFile(ctx context.Context, filename string, players []model.Player) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(players); err != nil {
		return fmt.Errorf("failed to write roster: %w", err)
	}

	logger.Get().Info(ctx, "roster saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("playersGenerated", stats.PlayersGenerated),
		logger.Int("ringers", stats.Ringers),
		logger.Int("retired", stats.Retired),
		logger.Int("performanceRows", stats.PerformanceRows),
		logger.Int("batches", stats.Batches),
		logger.Duration("duration", stats.Duration))
}
