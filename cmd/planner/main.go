package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"truckplan/internal/config"
	"truckplan/internal/db"
	"truckplan/internal/dragdrop"
	"truckplan/internal/erpapi"
	"truckplan/internal/events"
	"truckplan/internal/ordering"
	"truckplan/internal/planner"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	var configPath string
	root := &cobra.Command{
		Use:           "planner",
		Short:         "Truckload planner calendar service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PLANNER_CONFIG_PATH"), "path to config.yaml")

	root.AddCommand(
		newServeCmd(&configPath, &logger),
		newExportCmd(&configPath, &logger),
		newLayoutCmd(&configPath, &logger),
	)

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("planner failed")
		os.Exit(1)
	}
}

// app holds everything a subcommand needs.
type app struct {
	cfg    *config.Config
	db     *db.DB
	rdb    *redis.Client
	erp    *erpapi.Client
	bus    *events.EventBus
	svc    *planner.Service
	logger *zerolog.Logger
}

func bootstrap(configPath string, logger *zerolog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	a := &app{cfg: cfg, db: database, bus: events.NewEventBus(*logger), logger: logger}
	if cfg.RedisEnabled() {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	var source planner.DataSource = database
	var reassigner dragdrop.Reassigner = database
	if cfg.ERP.Enabled {
		a.erp = erpapi.NewClient(cfg.ERP.BaseURL, cfg.ERP.APIKey)
		if a.rdb != nil && cfg.CacheTTL() > 0 {
			a.erp.UseRedisCache(a.rdb, cfg.CacheTTL())
		}
		if cfg.ERP.MutationRatePerSecond > 0 {
			a.erp.LimitMutations(cfg.ERP.MutationRatePerSecond, cfg.ERP.MutationBurst)
		}
		source, reassigner = a.erp, a.erp
		a.bus.Subscribe(events.FleetReloaded, func(events.Event) error {
			a.erp.InvalidateAll(context.Background())
			return nil
		})
	}

	prefs, err := a.preferences()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = planner.NewService(planner.Options{
		Source:     source,
		Reassigner: reassigner,
		Prefs:      prefs,
		Bus:        a.bus,
		RangeTTL:   cfg.RangeTTL(),
		GestureTTL: cfg.GestureTTL(),
	}, *logger)

	logger.Debug().
		Bool("erp", cfg.ERP.Enabled).
		Bool("redis", a.rdb != nil).
		Str("preferences", cfg.Planner.PreferencesBackend).
		Msg("planner wired")
	return a, nil
}

func (a *app) preferences() (ordering.KV, error) {
	switch a.cfg.Planner.PreferencesBackend {
	case config.BackendMemory:
		return ordering.NewMemoryKV(), nil
	case config.BackendFile:
		return ordering.NewFileKV(a.cfg.Planner.PreferencesPath)
	case config.BackendRedis:
		if a.rdb == nil {
			return nil, fmt.Errorf("preferences backend %q needs redis.address", config.BackendRedis)
		}
		return ordering.NewRedisKV(a.rdb, "truckplan:"), nil
	case config.BackendSQLite, "":
		return a.db.Preferences(), nil
	default:
		return nil, fmt.Errorf("unknown preferences backend %q", a.cfg.Planner.PreferencesBackend)
	}
}

// syncFleet loads fleet.yaml into the drivers table.
func (a *app) syncFleet(ctx context.Context) {
	fleet, err := config.LoadFleetConfig(a.cfg.Planner.FleetPath)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to load fleet config")
		return
	}
	if err := a.db.SyncDriversFromConfig(ctx, fleet); err != nil {
		a.logger.Error().Err(err).Msg("failed to apply fleet config")
		return
	}
	a.logger.Info().Int("drivers", len(fleet.GetActiveDrivers())).Msg("fleet config applied")
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}
