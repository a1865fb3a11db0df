// Package serverrun loads configuration, wires services to their storage and
// transport, and runs the HTTP server until the process is signalled.
package serverrun

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwauth"
	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwcompress"
	"github.com/bypptech/group-wallet-organizer/internal/api/raudit"
	"github.com/bypptech/group-wallet-organizer/internal/api/rcollection"
	"github.com/bypptech/group-wallet-organizer/internal/api/rescrow"
	"github.com/bypptech/group-wallet-organizer/internal/api/rhealth"
	"github.com/bypptech/group-wallet-organizer/internal/api/rpolicy"
	"github.com/bypptech/group-wallet-organizer/internal/api/rvault"
	"github.com/bypptech/group-wallet-organizer/pkg/eventstream/memory"
	"github.com/bypptech/group-wallet-organizer/pkg/keylock"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/payout"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/scollection"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/service/spolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
)

type Config struct {
	Port          string `yaml:"port"`
	DBPath        string `yaml:"db_path"`
	JWTSecret     string `yaml:"jwt_secret"`
	PayoutBaseURL string `yaml:"payout_base_url"`
	LocalAuth     bool   `yaml:"local_auth"`
}

// LoadConfig reads the YAML config file if present and applies environment
// overrides on top. Every field has a usable local default.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		Port:   "8080",
		DBPath: "group-wallet.db",
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("PAYOUT_BASE_URL"); v != "" {
		cfg.PayoutBaseURL = v
	}
	if os.Getenv("LOCAL_AUTH") == "1" {
		cfg.LocalAuth = true
	}
	return cfg, nil
}

func Run() error {
	cfg, err := LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlc.CreateLocalTables(ctx, db); err != nil {
		return err
	}

	queries := gen.New(db)
	logger := slog.Default()

	streamer := memory.NewInMemorySyncStreamer[saudit.Topic, maudit.Event]()
	defer streamer.Shutdown()

	locks := keylock.New()
	var dispatcher payout.Dispatcher
	if cfg.PayoutBaseURL != "" {
		dispatcher = payout.NewHTTPDispatcher(cfg.PayoutBaseURL)
	} else {
		slog.Warn("No payout base URL configured, releases will be recorded locally")
		dispatcher = payout.NewRecorder()
	}

	as := saudit.New(queries, streamer, logger)
	vs := svault.New(queries)
	ps := spolicy.New(db, queries, vs, as)
	es := sescrow.New(db, queries, vs, ps, locks, dispatcher, as)
	aps := sapproval.New(db, queries, vs, es, locks, as)
	cs := scollection.New(db, queries, as)

	var auth func(http.Handler) http.Handler
	if cfg.LocalAuth || cfg.JWTSecret == "" {
		slog.Warn("Running with local dummy auth, do not expose this server")
		auth = mwauth.NewLocal()
	} else {
		auth = mwauth.New([]byte(cfg.JWTSecret))
	}
	compress := mwcompress.New()

	var services []api.Service
	services = append(services, rhealth.CreateService(rhealth.New())...)
	services = append(services, rvault.CreateService(rvault.New(vs), auth, compress)...)
	services = append(services, rpolicy.CreateService(rpolicy.New(ps), auth, compress)...)
	services = append(services, rescrow.CreateService(rescrow.New(es, aps), auth, compress)...)
	services = append(services, rcollection.CreateService(rcollection.New(cs), auth, compress)...)
	services = append(services, raudit.CreateService(raudit.New(as), auth)...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenServices(services, cfg.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		streamer.Shutdown()
		return nil
	})
	return g.Wait()
}
