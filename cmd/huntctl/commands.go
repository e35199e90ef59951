package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/cal-poly-dxhub/duck-hunt/internal/planner"
	"github.com/cal-poly-dxhub/duck-hunt/internal/progress"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/queue"
	"github.com/cal-poly-dxhub/duck-hunt/internal/storage"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	queuePkg "github.com/cal-poly-dxhub/duck-hunt/pkg/queue"
	pkgstorage "github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a game definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args[0])
	},
}

var createCmd = &cobra.Command{
	Use:   "create FILE",
	Short: "Plan a game and write it to Redis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rdb.Close()
		store := storage.NewRedisStorageFromClient(rdb, 0, cliLogger())
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		return runCreate(cmd.Context(), cmd.OutOrStdout(), store, rng, args[0])
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue FILE",
	Short: "Queue a definition for the setup worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rdb.Close()
		q := queue.NewSetupQueue(queue.NewClientFromRedis(rdb, cliLogger()))
		return runEnqueue(cmd.Context(), cmd.OutOrStdout(), q, args[0])
	},
}

var showCmd = &cobra.Command{
	Use:   "show REQUEST_ID",
	Short: "Print the result of a setup request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rdb.Close()
		q := queue.NewSetupQueue(queue.NewClientFromRedis(rdb, cliLogger()))
		return runShow(cmd.Context(), cmd.OutOrStdout(), q, args[0])
	},
}

var coordLimit int

var progressCmd = &cobra.Command{
	Use:   "progress TEAM_ID",
	Short: "Print a team's levels and recent coordinates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rdb.Close()
		store := storage.NewRedisStorageFromClient(rdb, 0, cliLogger())
		return runProgress(cmd.Context(), cmd.OutOrStdout(), store, args[0], coordLimit)
	},
}

func init() {
	progressCmd.Flags().IntVar(&coordLimit, "coords", 10, "number of recent coordinates to print")
}

func connect(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// loadValid reads path and rejects invalid definitions, printing each problem to out.
func loadValid(out io.Writer, path string) (*game.Definition, error) {
	def, err := game.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		var derr *game.DefinitionError
		if errors.As(err, &derr) {
			for _, p := range derr.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
		}
		return nil, fmt.Errorf("%s is not a valid game definition", path)
	}
	return def, nil
}

func runValidate(out io.Writer, path string) error {
	def, err := loadValid(out, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s is valid: %q, %d teams, %d of %d levels per team\n",
		path, def.Name, len(def.Teams), def.PlayedLevels(), len(def.Levels))
	return nil
}

func runCreate(ctx context.Context, out io.Writer, store pkgstorage.GameStore, rng *rand.Rand, path string) error {
	def, err := loadValid(out, path)
	if err != nil {
		return err
	}
	plan, err := planner.New(rng, cliLogger()).Plan(def)
	if err != nil {
		return err
	}
	if err := planner.Persist(ctx, store, plan); err != nil {
		return err
	}

	fmt.Fprintf(out, "game %s (%s)\n", plan.Game.ID, plan.Game.Name)
	for _, t := range plan.Teams {
		fmt.Fprintf(out, "  team %s %s\n", t.ID, t.Name)
		for _, tl := range plan.Assignments[t.ID] {
			fmt.Fprintf(out, "    %d. %s\n", tl.Index+1, tl.LevelID)
		}
	}
	return nil
}

// progressStore is what the progress report reads.
type progressStore interface {
	pkgstorage.GameStore
	pkgstorage.TeamLevelStore
	pkgstorage.TelemetryStore
}

func runProgress(ctx context.Context, out io.Writer, store progressStore, teamID string, coords int) error {
	team, err := store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return fmt.Errorf("team %s not found", teamID)
	}

	tls, err := progress.New(store, cliLogger()).AllForTeam(ctx, teamID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "team %s %s (%s)\n", team.ID, team.Name, team.Difficulty)
	current := true
	for _, tl := range tls {
		name := "?"
		if level, err := store.GetLevel(ctx, tl.LevelID); err != nil {
			return err
		} else if level != nil {
			name = level.Name
		}
		state := "pending"
		switch {
		case tl.Completed():
			state = "completed " + tl.CompletedAt.UTC().Format(time.RFC3339)
		case current:
			state, current = "current", false
		}
		fmt.Fprintf(out, "  %d. %s %s: %s\n", tl.Index+1, tl.LevelID, name, state)
	}

	snaps, err := store.CoordinatesForTeam(ctx, teamID)
	if err != nil {
		return err
	}
	recent := snaps
	if coords >= 0 && len(recent) > coords {
		recent = recent[len(recent)-coords:]
	}
	fmt.Fprintf(out, "coordinates: %d recorded\n", len(snaps))
	for _, c := range recent {
		fmt.Fprintf(out, "  %s %s level %s: %.6f,%.6f\n",
			c.CreatedAt.UTC().Format(time.RFC3339), c.UserID, c.LevelID, c.Latitude, c.Longitude)
	}

	photos, err := store.PhotosForTeam(ctx, teamID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "photos: %d\n", len(photos))
	return nil
}

func runEnqueue(ctx context.Context, out io.Writer, q *queue.SetupQueue, path string) error {
	def, err := loadValid(out, path)
	if err != nil {
		return err
	}
	req := &queuePkg.SetupRequest{
		RequestID:  uuid.NewString(),
		Definition: *def,
		Source:     path,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.Enqueue(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(out, "enqueued %s\n", req.RequestID)
	return nil
}

func runShow(ctx context.Context, out io.Writer, q *queue.SetupQueue, requestID string) error {
	res, err := q.Result(ctx, requestID)
	if err != nil {
		return err
	}
	if res == nil {
		depth, err := q.Depth(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "request %s is pending (%d queued)\n", requestID, depth)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
