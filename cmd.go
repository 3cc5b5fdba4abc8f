// cmd.go
//
// Command tree.
//   - omnimusle [serve] : run the HTTP/websocket server (default)
//   - omnimusle share   : print the share text of a player's finished game
//
// Settings are flags on the root command; config.BindEnv fills the ones not given on the
// command line from the environment before any subcommand runs.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/michaljagosz/omnimusle/internal/catalog"
	"github.com/michaljagosz/omnimusle/internal/config"
	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/httpserver"
	"github.com/michaljagosz/omnimusle/internal/metrics"
	"github.com/michaljagosz/omnimusle/internal/provider"
	"github.com/michaljagosz/omnimusle/internal/search"
	"github.com/michaljagosz/omnimusle/internal/session"
	"github.com/michaljagosz/omnimusle/internal/store"
)

const releaseVersion = "0.4.0"

func newRootCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	var logFile io.Closer

	root := &cobra.Command{
		Use:     "omnimusle",
		Short:   "Daily music and film guessing games: song, artist, album, lyrics, film, clip and mashup.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindEnv(cmd.Root().PersistentFlags(), v); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logFile = config.SetupLogging(cfg)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				_ = logFile.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	config.Flags(root.PersistentFlags(), cfg)

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	})
	root.AddCommand(newShareCmd(cfg))

	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	root.SetVersionTemplate("omnimusle v{{.Version}}\n")
	root.SilenceErrors = true
	root.SilenceUsage = true
	return root
}

func newShareCmd(cfg *config.Config) *cobra.Command {
	var (
		player string
		kind   string
		qr     bool
	)
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print the share text of a player's finished game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := game.ParseKind(kind)
			if err != nil {
				return err
			}
			db, kv, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			defer kv.Close()

			kc := game.Kinds[k]
			s, ok := game.NewPersistence(store.NewScoped(kv, player), kc.StorageKey, kc).LoadAny(cmd.Context())
			if !ok {
				return fmt.Errorf("no %s game stored for player %s", k, player)
			}
			if !s.Status.Finished() {
				return fmt.Errorf("%s game of player %s: %w", k, player, session.ErrNotFinished)
			}
			text := game.ShareText(kc, *s, cfg.ShareURL)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			if qr {
				code, err := qrcode.New(text, qrcode.Low)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), code.ToSmallString(false))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player id (the uuid in the player cookie)")
	cmd.Flags().StringVar(&kind, "kind", string(game.KindSong), "game kind")
	cmd.Flags().BoolVar(&qr, "qr", false, "also print the text as a terminal QR code")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

// openStores opens the SQLite database (always needed for results) and the configured
// snapshot store.
func openStores(ctx context.Context, cfg *config.Config) (*sql.DB, store.Store, error) {
	db, err := store.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	opts := cfg.StoreOptions()
	opts.SQLite = db
	kv, err := store.Open(ctx, opts)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, kv, nil
}

// serve wires every component and runs until SIGINT/SIGTERM.
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if err := catalog.Init(cfg.CatalogFile); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	db, kv, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer kv.Close()

	hc := &http.Client{Timeout: 10 * time.Second}
	deezer := provider.NewDeezer(cfg.DeezerBaseURL, hc, provider.NewLimiter(cfg.UpstreamRPS))
	tmdb := provider.NewTMDB(cfg.TMDBBaseURL, cfg.TMDBAPIKey, hc, provider.NewLimiter(cfg.UpstreamRPS))
	if !tmdb.Enabled() {
		log.Warn().Msg("TMDB_API_KEY not set: film search and posters disabled")
	}
	src := provider.NewSource(catalog.Default(), deezer, tmdb)
	results := daily.NewStore(db)

	srv := httpserver.New(httpserver.Deps{
		Games: session.NewManager(session.Options{
			Source:   src,
			Store:    kv,
			Results:  results,
			ShareURL: cfg.ShareURL,
		}),
		Search:         search.NewService(src),
		Results:        results,
		JWTSecret:      cfg.JWTSecret,
		SecureCookies:  cfg.SecureCookies,
		ClientOrigin:   cfg.ClientOrigin,
		SearchDebounce: cfg.SearchDebounce,
	})
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set: using the development secret")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Str("storage", cfg.StorageDriver).Msg("starting omnimusle")
		return srv.Start(gctx, cfg.Addr())
	})
	g.Go(func() error {
		prewarm(gctx, src)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("omnimusle stopped")
	return nil
}
