package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/johnwards/stagetrack/internal/config"
	"github.com/johnwards/stagetrack/internal/database"
	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/metrics"
	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/pipeline"
	"github.com/johnwards/stagetrack/internal/seed"
	"github.com/johnwards/stagetrack/internal/store"
)

// app is the wired application shared by every subcommand.
type app struct {
	cfg      config.Config
	store    *store.Store
	engine   *migration.Engine
	registry *prometheus.Registry
}

// open connects to the configured database, applies migrations and wires
// the engine. Callers must call close.
func open(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg := config.FromViper(v)

	db, err := database.OpenAndMigrate(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewMigrationMetrics(reg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s := store.New(db)
	a := &app{
		cfg:      cfg,
		store:    s,
		registry: reg,
		engine: migration.New(s.Records, s.Runs,
			migration.WithErrorSample(cfg.ErrorSample),
			migration.WithMetrics(m),
		),
	}

	if cfg.Seed {
		if err := seed.Seed(ctx, s.Records); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed data: %w", err)
		}
	}
	return a, nil
}

func (a *app) close() {
	_ = a.store.DB.Close()
}

// stageArg resolves a stage argument ("contracts" or "contract").
func stageArg(name string) (domain.Stage, error) {
	stage, err := pipeline.ParseStage(name)
	if err != nil {
		return "", fmt.Errorf("%w (want one of %s)", err, stageNames())
	}
	return stage, nil
}

func stageNames() string {
	names := make([]string, len(domain.Stages))
	for i, st := range domain.Stages {
		names[i] = pipeline.MustSchema(st).Path
	}
	return strings.Join(names, ", ")
}
