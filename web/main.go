package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/creatorlink/internal/config"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/linking/exchange"
	"github.com/devilmonastery/creatorlink/internal/pkg/idgen"
	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
	"github.com/devilmonastery/creatorlink/migrations"
	"github.com/devilmonastery/creatorlink/web/internal/handlers"
	"github.com/devilmonastery/creatorlink/web/internal/middleware"
	"github.com/devilmonastery/creatorlink/web/internal/render"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		forceVersion int
		configPath   string
		logFlags     logOptions
	)

	cmd := &cobra.Command{
		Use:   "creatorlink",
		Short: "Creator account linking service",
		Long:  "Links a creator platform account to a signed-in user via OAuth and shows its connection status",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupWebLogging(logFlags, config.LoggingConfig{})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, forceVersion, logFlags)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&logFlags.level, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	cmd.PersistentFlags().StringVar(&logFlags.file, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.PersistentFlags().BoolVar(&logFlags.alsoStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.PersistentFlags().StringVar(&logFlags.format, "log-format", "", "Log format (text, json); overrides config")
	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, forceVersion, logFlags)
		},
	}
	serve.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")

	cmd.AddCommand(serve)
	cmd.AddCommand(newLinksCommand(&configPath))

	return cmd
}

// logOptions are the logging command-line flags
type logOptions struct {
	level      string
	file       string
	alsoStderr bool
	format     string
}

// setupWebLogging configures the global logger. Flags win over the config
// file's logging section.
func setupWebLogging(opts logOptions, fromConfig config.LoggingConfig) error {
	level := opts.level
	if level == "" {
		level = fromConfig.Level
	}
	format := opts.format
	if format == "" {
		format = fromConfig.Format
	}
	if format == "" {
		format = "json"
	}

	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:         logger.ParseLevel(level),
		LogFile:       opts.file,
		LogToStderr:   opts.file == "",
		AlsoLogStderr: opts.alsoStderr,
		Format:        format,
	})
	if err != nil {
		return err
	}

	// Set as default logger so all slog.Info/Warn/Error calls use our configured logger
	slog.SetDefault(globalLogger)
	return nil
}

func runServe(ctx context.Context, configPath string, forceVersion int, logFlags logOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := setupWebLogging(logFlags, cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	log := slog.Default().With("component", "web")
	log.Info("starting creatorlink web service",
		slog.String("environment", cfg.Environment),
		slog.String("exchange_mode", cfg.Exchange.Mode))

	if err := idgen.Initialize(cfg.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	pgConn, err := connectDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer pgConn.Close()

	if forceVersion >= 0 {
		log.Info("force setting migration version", slog.Int("version", forceVersion))
		if err := pgConn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("migration version forced, exiting", slog.Int("version", forceVersion))
		return nil
	}

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	repos := pgConn.Repositories()
	exchanger := newExchanger(cfg, log)
	status := linking.NewStatusService(repos.LinkedAccounts, cfg.Status.CacheSize, cfg.Status.CacheTTL, log)

	templates, err := render.LoadTemplates(cfg.Templates.Path)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	render.LogTemplateNames(templates, log)

	sessionMgr := session.NewManager(sessionSecret(cfg, log), session.Options{
		PendingTTL: cfg.Session.PendingTTL,
		Secure:     cfg.Session.SecureCookies,
		SigningKey: []byte(cfg.Session.JWTSigningKey),
	})
	authMw := middleware.NewAuthMiddleware(sessionMgr, cfg.Server.LoginURL, log)

	h := handlers.New(handlers.Deps{
		Sessions:  sessionMgr,
		Templates: templates,
		Exchanger: exchanger,
		Accounts:  repos.LinkedAccounts,
		Audit:     repos.Audit,
		Status:    status,
		Health:    pgConn,

		StateLedger: newStateLedger(cfg, repos, log),
		StateTTL:    cfg.Session.PendingTTL,

		Provider: linking.ProviderConfig{
			AuthorizeURL: cfg.Provider.AuthorizeURL,
			ClientKey:    cfg.Provider.ClientKey,
			RedirectURI:  cfg.Provider.RedirectURI,
			Scopes:       cfg.Provider.Scopes,
		},
		ProviderName:  cfg.Provider.Name,
		Retry:         linking.RetryPolicy{Attempts: cfg.Identity.Attempts, Delay: cfg.Identity.Delay},
		LoginURL:      cfg.Server.LoginURL,
		DashboardPath: cfg.Server.DashboardPath,
		Logger:        log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           createRouter(h, authMw, cfg.Server.DashboardPath, log),
		ReadHeaderTimeout: 10 * time.Second,
		// the callback may wait on identity and the exchange
		WriteTimeout: cfg.Exchange.Timeout + cfg.Identity.Delay*time.Duration(cfg.Identity.Attempts) + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newExchanger picks the code exchange implementation for the configured mode
func newExchanger(cfg *config.Config, log *slog.Logger) linking.Exchanger {
	if cfg.Exchange.Mode == "direct" {
		log.Info("exchanging codes directly with provider", slog.String("token_url", cfg.Provider.TokenURL))
		return exchange.NewDirectClient(exchange.DirectConfig{
			ClientKey:    cfg.Provider.ClientKey,
			ClientSecret: cfg.Provider.ClientSecret,
			AuthorizeURL: cfg.Provider.AuthorizeURL,
			TokenURL:     cfg.Provider.TokenURL,
			UserInfoURL:  cfg.Provider.UserInfoURL,
			RedirectURI:  cfg.Provider.RedirectURI,
			Timeout:      cfg.Exchange.Timeout,
		}, log)
	}
	log.Info("exchanging codes through backend", slog.String("backend_url", cfg.Exchange.BackendURL))
	return exchange.NewBackendClient(cfg.Exchange.BackendURL, cfg.Exchange.Timeout, log)
}

// newStateLedger picks where redeemed state tokens are recorded
func newStateLedger(cfg *config.Config, repos *repositories.Repositories, log *slog.Logger) linking.StateLedger {
	if cfg.Session.StateLedger == "memory" || repos == nil || repos.LinkStates == nil {
		log.Warn("state tokens are tracked in memory; replays are only rejected by this instance")
		return linking.NewMemoryStateLedger(0, cfg.Session.PendingTTL)
	}
	return repos.LinkStates
}

// sessionSecret resolves the cookie key. SESSION_SECRET already overrides
// the config file during config loading.
func sessionSecret(cfg *config.Config, log *slog.Logger) []byte {
	if cfg.Session.Secret != "" {
		secret, err := base64.StdEncoding.DecodeString(cfg.Session.Secret)
		if err == nil {
			log.Info("using session secret (sessions will persist across restarts)")
			return secret
		}
		log.Warn("failed to decode session secret", slog.Any("error", err))
	}

	log.Warn("no session secret configured, generating random one (sessions won't persist)")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

// createRouter sets up the HTTP router with all routes and middleware
func createRouter(h *handlers.Handler, authMw *middleware.AuthMiddleware, dashboardPath string, log *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest(log))

	staticDir := http.Dir("web/static")
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.FileServer(staticDir).ServeHTTP(w, r)
	})))

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/auth/complete", h.SessionComplete).Methods(http.MethodGet)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	// The callback is reachable without a live session; the pending record
	// identifies the initiator when the auth cookie did not survive
	router.HandleFunc("/link/tiktok/callback", h.LinkCallback).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(authMw.RequireAuth)
	protected.HandleFunc("/link/tiktok/start", h.StartLink).Methods(http.MethodGet)
	protected.HandleFunc("/link/tiktok/status", h.LinkStatus).Methods(http.MethodGet)
	protected.HandleFunc("/link/tiktok/disconnect", h.Disconnect).Methods(http.MethodPost)
	protected.HandleFunc(dashboardPath, h.Dashboard).Methods(http.MethodGet)

	router.Handle("/", http.RedirectHandler(dashboardPath, http.StatusSeeOther)).Methods(http.MethodGet)

	return router
}
