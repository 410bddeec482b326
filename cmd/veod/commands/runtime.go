package commands

import (
	"context"
	"database/sql"

	"github.com/dreamtide/veod/artifact"
	"github.com/dreamtide/veod/config"
	"github.com/dreamtide/veod/credit"
	"github.com/dreamtide/veod/db"
	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/gen"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/logger"
	"github.com/dreamtide/veod/poll"
	"github.com/dreamtide/veod/veo"
)

// runtime bundles the wired services a command needs. Everything is
// constructed here once and passed explicitly; there are no shared
// singletons.
type runtime struct {
	cfg     *config.Config
	conn    *sql.DB
	store   *job.Store
	ledger  *credit.Ledger
	client  *veo.Client
	service *gen.Service
}

// openRuntime loads config, opens and migrates the database, and wires
// the service graph. ctx bounds the polling loops.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(conn, logger.Logger); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	store := job.NewStore(conn)
	store.Load()

	ledger, err := credit.NewLedger(conn, cfg.Credits.InitialBalance)
	if err != nil {
		conn.Close()
		return nil, err
	}

	client := veo.NewClient(cfg.Backend.RequestTimeout(), cfg.Backend.Model)

	service := gen.NewService(ctx, gen.Options{
		Backend:      client,
		Store:        store,
		Credits:      ledger,
		Materializer: artifact.NewMaterializer(cfg.Media.Dir),
		PollConfig: poll.Config{
			Interval:         cfg.Poll.Interval(),
			MaxAttempts:      cfg.Poll.MaxAttempts,
			ProgressInterval: cfg.Poll.ProgressInterval(),
			AssumedDuration:  cfg.Poll.AssumedDuration(),
		},
		CostPerVideo:     cfg.Credits.CostPerVideo,
		StorageURI:       cfg.Backend.StorageURI,
		SubmitsPerMinute: cfg.Backend.SubmitsPerMinute,
	})

	return &runtime{
		cfg:     cfg,
		conn:    conn,
		store:   store,
		ledger:  ledger,
		client:  client,
		service: service,
	}, nil
}

// bootstrap resolves the backend target before any submission.
func (r *runtime) bootstrap(ctx context.Context) error {
	return r.client.Bootstrap(ctx, r.cfg.Backend.BaseURL, r.cfg.Backend.BootstrapURL)
}

func (r *runtime) close() {
	r.service.Shutdown()
	if err := r.conn.Close(); err != nil {
		logger.Warnw("Failed to close database", "error", err)
	}
}
