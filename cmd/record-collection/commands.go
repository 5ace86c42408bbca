package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/justestif/go-record-collection/internal/auth"
	"github.com/justestif/go-record-collection/internal/catalog"
	"github.com/justestif/go-record-collection/internal/collection"
	"github.com/justestif/go-record-collection/internal/config"
	"github.com/justestif/go-record-collection/internal/db"
	"github.com/justestif/go-record-collection/internal/discogs"
	"github.com/justestif/go-record-collection/internal/eras"
	"github.com/justestif/go-record-collection/internal/importer"
	"github.com/justestif/go-record-collection/internal/lastfm"
	"github.com/justestif/go-record-collection/internal/logger"
	"github.com/justestif/go-record-collection/internal/records"
	"github.com/justestif/go-record-collection/internal/spotify"
	"github.com/justestif/go-record-collection/internal/sqlite"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/web"
)

// backend is an open storage backend of either driver.
type backend struct {
	stores store.Stores
	close  func()
}

func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(log)
	return cfg, log, nil
}

func openBackend(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*backend, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := db.New(ctx, cfg.URL, db.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &backend{stores: pg.Stores(), close: pg.Close}, nil
	case "sqlite":
		lite, err := sqlite.Open(ctx, cfg.URL, sqlite.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{
			stores: lite.Stores(),
			close: func() {
				if err := lite.Close(); err != nil {
					log.Warn("closing sqlite", "error", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// catalogSources returns a searcher for every source with credentials.
func catalogSources(ctx context.Context, cfg config.CatalogConfig, log *slog.Logger) []catalog.Searcher {
	var sources []catalog.Searcher

	if cfg.SpotifyEnabled() {
		client, err := spotify.NewWithCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			log.Warn("spotify search disabled", "error", err)
		} else {
			sources = append(sources, client)
		}
	}

	if cfg.LastFMAPIKey != "" {
		client, err := lastfm.NewClient(&lastfm.Config{APIKey: cfg.LastFMAPIKey})
		if err != nil {
			log.Warn("last.fm search disabled", "error", err)
		} else {
			sources = append(sources, client)
		}
	}

	if cfg.DiscogsToken != "" {
		client, err := discogs.NewClient(cfg.DiscogsToken, discogs.WithLogger(log))
		if err != nil {
			log.Warn("discogs search disabled", "error", err)
		} else {
			sources = append(sources, client)
		}
	}

	return sources
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer b.close()

	search := catalog.NewService(catalogSources(ctx, cfg.Catalog, log),
		catalog.WithLimit(cfg.Catalog.SearchLimit), catalog.WithLogger(log))
	if names := search.Sources(); len(names) == 0 {
		log.Warn("no catalog sources configured; search is disabled")
	} else {
		log.Info("catalog search enabled", "sources", names)
	}

	jwt := auth.NewJWT([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)

	server := web.NewServer(web.ServerConfig{Addr: cfg.Server.Addr, Logger: log}, web.Deps{
		Records:    records.NewService(b.stores.Records, records.WithLogger(log)),
		Collection: collection.NewService(b.stores.Tokens, b.stores.Records, collection.WithLogger(log)),
		Auth:       auth.NewService(b.stores.Users, jwt, auth.WithLogger(log)),
		Verifier:   jwt,
		Catalog:    search,
		Eras:       eras.NewService(b.stores.Records, eras.DefaultConfig()),
		Tags:       b.stores.Tags,
		Ping:       b.stores.Ping,
	})

	return server.Run()
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	b.close()

	log.Info("schema applied", "driver", cfg.Database.Driver)
	return nil
}

func importFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("missing FILE argument")
	}

	format, err := importer.DetectFormat(path, "")
	if err != nil {
		return err
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	inputs, err := importer.Parse(f, format)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	b, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer b.close()

	svc := records.NewService(b.stores.Records, records.WithLogger(log))
	created, err := svc.CreateMany(ctx, cmd.Int64("user"), inputs)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	log.Info("import complete", "file", path, "records", len(created))
	return nil
}
