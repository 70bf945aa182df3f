package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cartridge/landlord/internal/actor"
	"github.com/cartridge/landlord/internal/agent"
	"github.com/cartridge/landlord/internal/config"
	"github.com/cartridge/landlord/internal/events"
	"github.com/cartridge/landlord/internal/health"
	httpServer "github.com/cartridge/landlord/internal/http"
	"github.com/cartridge/landlord/internal/landlord"
	"github.com/cartridge/landlord/internal/metrics"
	"github.com/cartridge/landlord/internal/network"
	"github.com/cartridge/landlord/internal/policy"
	"github.com/cartridge/landlord/internal/report"
	"github.com/cartridge/landlord/internal/storage"
)

var (
	v          = viper.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "landlord",
	Short: "Landlord card game value-learning trainer",
	Long: `Trains a value network to play the landlord seat against two scripted
farmers, using experience replay, a hard-synced target network and
epsilon-greedy exploration.`,
	SilenceUsage: true,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run self-play training",
	RunE:  runTrain,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Play greedily with a saved checkpoint and report the win rate",
	RunE:  runEvaluate,
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List saved checkpoints",
	RunE:  runCheckpoints,
}

func init() {
	d := config.Default()
	f := rootCmd.PersistentFlags()
	f.StringVar(&configFile, "config", "", "Optional YAML config file")

	// Learner
	f.Int("replay-capacity", d.ReplayCapacity, "Replay buffer capacity")
	f.Int("batch-size", d.BatchSize, "Mini-batch size")
	f.Float64("gamma", d.Gamma, "Discount factor")
	f.Float64("epsilon-high", d.EpsilonHigh, "Initial exploration rate")
	f.Float64("epsilon-low", d.EpsilonLow, "Exploration floor")
	f.Float64("epsilon-decay", d.EpsilonDecay, "Exploration decay constant, in decisions")
	f.Int("target-sync-every", d.TargetSyncEvery, "Gradient steps between target network syncs")
	f.Float64("learning-rate", d.LearningRate, "Adam learning rate")
	f.Int("filters", d.Filters, "Convolution filters per width")
	f.Int("hidden", d.Hidden, "Hidden layer width")

	// Episode settings
	f.Int("episodes", d.Episodes, "Episodes to train")
	f.Int("report-every", d.ReportEvery, "Episodes per report window")
	f.Int64("seed", d.Seed, "Random seed (0 for time based)")
	f.String("opponent", d.Opponent, "Farmer policy (heuristic, random)")

	// Persistence
	f.String("checkpoint-dir", d.CheckpointDir, "Checkpoint directory")
	f.String("checkpoint-dsn", d.CheckpointDSN, "PostgreSQL DSN; stores checkpoints in the database when set")
	f.String("history-path", d.HistoryPath, "Report history parquet file (<tag> is replaced by the run tag)")
	f.String("checkpoint", d.Checkpoint, "Checkpoint name to resume training from or to evaluate")

	// Events and status
	f.String("nats-url", d.NATSURL, "NATS server URL for report events")
	f.String("nats-subject", d.NATSSubject, "NATS subject prefix")
	f.String("status-addr", d.StatusAddr, "Status API listen address (empty disables)")
	f.Duration("stall-after", d.StallAfter, "Report the run unhealthy after this long without a finished episode")

	f.Int("evaluate-episodes", d.EvaluateEpisodes, "Games to play when evaluating")

	// Logging
	f.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	f.String("log-format", d.LogFormat, "Log format (json, console)")

	f.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(fl.Name, "-", "_"), fl)
	})

	rootCmd.AddCommand(trainCmd, evaluateCmd, checkpointsCmd)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg), nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func openStore(ctx context.Context, cfg *config.Config) (storage.CheckpointStore, func(), error) {
	if cfg.CheckpointDSN != "" {
		pg, err := storage.OpenPostgres(ctx, cfg.CheckpointDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	fs, err := storage.NewFileStore(cfg.CheckpointDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func newGame(cfg *config.Config, rng *rand.Rand) (*landlord.Game, error) {
	down, err := policy.New(cfg.Opponent, rand.New(rand.NewSource(rng.Int63())))
	if err != nil {
		return nil, err
	}
	up, err := policy.New(cfg.Opponent, rand.New(rand.NewSource(rng.Int63())))
	if err != nil {
		return nil, err
	}
	return landlord.NewGame(rand.New(rand.NewSource(rng.Int63())), down, up), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rng := newRand(cfg.Seed)
	game, err := newGame(cfg, rng)
	if err != nil {
		return err
	}
	learner, err := agent.New(cfg.AgentConfig(), rng, logger)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Checkpoint != "" {
		cp, err := store.Load(ctx, cfg.Checkpoint)
		if err != nil {
			return fmt.Errorf("failed to load checkpoint %s: %w", cfg.Checkpoint, err)
		}
		if err := learner.LoadPolicy(cp.Data); err != nil {
			return err
		}
		logger.Info().Str("checkpoint", cp.Name).Msg("Resuming from checkpoint")
	}

	run := actor.NewRunContext(cfg.ReportEvery, time.Now())
	history, err := report.NewHistory(cfg.HistoryFile(run.Tag()))
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nats.Close()
		publisher = nats
	}

	collector := metrics.NewCollector(logger)
	if cfg.StatusAddr != "" {
		monitor := health.NewMonitor(run, health.Config{
			CheckInterval: max(cfg.StallAfter/4, time.Second),
			StallAfter:    cfg.StallAfter,
		}, logger)
		go monitor.Start(ctx)

		srv := httpServer.NewServer(run, store, monitor, collector, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	a, err := actor.New(actor.Options{Episodes: cfg.Episodes, ReportEvery: cfg.ReportEvery}, actor.Deps{
		Env:       game,
		Agent:     learner,
		Run:       run,
		Store:     store,
		History:   history,
		Publisher: publisher,
		Metrics:   collector,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", run.ID()).
		Str("tag", run.Tag()).
		Str("opponent", cfg.Opponent).
		Str("history", history.Path()).
		Msg("Starting training")

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Int("episodes", run.Episodes()).Msg("Training interrupted")
			return nil
		}
		return err
	}
	logger.Info().Int("episodes", run.Episodes()).Msg("Training finished")
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cfg.Checkpoint == "" {
		return fmt.Errorf("--checkpoint is required")
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cp, err := store.Load(ctx, cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint %s: %w", cfg.Checkpoint, err)
	}
	net, err := network.Load(cp.Data)
	if err != nil {
		return err
	}

	game, err := newGame(cfg, newRand(cfg.Seed))
	if err != nil {
		return err
	}
	start := time.Now()
	ev, err := actor.NewEvaluator(game, net).Evaluate(ctx, cfg.EvaluateEpisodes)
	if err != nil {
		return err
	}
	logger.Info().
		Str("checkpoint", cp.Name).
		Int("games", ev.Games).
		Int("wins", ev.Wins).
		Float64("win_rate", ev.WinRate).
		Dur("elapsed", time.Since(start)).
		Msg("Evaluation finished")
	return json.NewEncoder(cmd.OutOrStdout()).Encode(ev)
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, cp := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tepisode=%d\twins=%d\t%s\n",
			cp.Name, cp.Episode, cp.Wins, cp.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
