package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stellaephile/whats-up-doc/internal/config"
	"github.com/stellaephile/whats-up-doc/internal/domain/facility"
	"github.com/stellaephile/whats-up-doc/internal/domain/pincode"
	"github.com/stellaephile/whats-up-doc/internal/domain/routing"
	"github.com/stellaephile/whats-up-doc/internal/domain/triage"
	"github.com/stellaephile/whats-up-doc/internal/platform/bedrock"
	"github.com/stellaephile/whats-up-doc/internal/platform/db"
	"github.com/stellaephile/whats-up-doc/internal/platform/geocode"
	"github.com/stellaephile/whats-up-doc/internal/platform/httperr"
	"github.com/stellaephile/whats-up-doc/internal/platform/middleware"
	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wud-server",
		Short: "Healthcare facility routing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the facility routing API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print facility directory coverage counters as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := facility.NewStorePG(pool, geo.IndiaBoundingBox, cfg.QualityThreshold, cfg.DBAcquireTimeout(), cfg.DBQueryTimeout())
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read facility stats: %w", err)
			}

			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	bbox := geo.IndiaBoundingBox

	// Facility store + diagnostic endpoints
	store := facility.NewStorePG(pool, bbox, cfg.QualityThreshold, cfg.DBAcquireTimeout(), cfg.DBQueryTimeout())
	facilitySvc := facility.NewService(store, bbox, cfg.QualityThreshold)

	// Pincode resolution; the external geocoder is optional and the
	// resolver degrades to stored centroids without it.
	var geocoder pincode.Geocoder
	if cfg.GeocodeEnabled() {
		gc, err := geocode.New(ctx, geocode.Options{
			Region:    cfg.GeocodeRegion,
			IndexName: cfg.GeocodeIndexName,
			APIKey:    cfg.GeocodeAPIKey,
			Timeout:   cfg.GeocodeTimeout(),
			MinScore:  cfg.GeocodeMinScore,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize geocoder")
		}
		geocoder = gc
		logger.Info().Str("index", cfg.GeocodeIndexName).Msg("geocoder enabled")
	} else {
		logger.Warn().Msg("GEOCODE_INDEX_NAME not set; pincode resolution uses stored centroids only")
	}

	pincodeCache := pincode.NewCache(cfg.PincodeCacheTTL())
	cacheCtx, cacheCancel := context.WithCancel(context.Background())
	defer cacheCancel()
	pincodeCache.StartCleanup(cacheCtx, 10*time.Minute)
	pincodeSvc := pincode.NewService(geocoder, store, pincodeCache, bbox, logger)

	// Symptom triage; the model branch is optional and classification
	// degrades to the rule table without it.
	var classifier *triage.AIClassifier
	if cfg.AIEnabled {
		brc, err := bedrock.New(ctx, bedrock.Options{
			Region:  cfg.AIRegion,
			Timeout: cfg.AITimeout(),
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize bedrock client")
		}
		classifier = triage.NewAIClassifier(brc, cfg.AIStage1Model, cfg.AIStage2Model, logger)
		logger.Info().
			Str("stage1_model", cfg.AIStage1Model).
			Str("stage2_model", cfg.AIStage2Model).
			Msg("model classification enabled")
	} else {
		logger.Warn().Msg("AI_CLASSIFIER_ENABLED not set; classification uses keyword and rule branches only")
	}

	stageSecret, randomSecret, err := resolveStageSecret(cfg.StageCacheSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("stage cache secret error")
	}
	if randomSecret {
		logger.Warn().Msg("STAGE_CACHE_SECRET not set; using random secret (clarification tokens will not survive restart)")
	}
	tokens := triage.NewTokenCodec(stageSecret, cfg.StageCacheTTL())
	triageSvc := triage.NewService(classifier, tokens, logger)

	// Severity-based facility routing
	routingSvc := routing.NewService(store, cfg.MinResults, cfg.MaxRadiusKm, cfg.QualityThreshold, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.Handler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.Sanitize(logger))

	rateCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateCfg.RequestsPerSecond <= 0 {
		rateCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateCfg))

	// Request bodies are small JSON documents (symptom text, severity
	// queries); anything bigger is garbage or abuse.
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout()))

	// Directory GETs are cacheable: same coordinates inside the TTL produce
	// the same ranking, and facility rows change on the ingestion cadence.
	e.Use(middleware.ETag(middleware.DefaultCacheConfig()))
	respCache := middleware.NewInMemoryCacheStore()
	respCache.StartCleanup(cacheCtx, 10*time.Minute)
	e.Use(middleware.ResponseCache(respCache, time.Minute, "/health"))

	// Routes
	e.GET("/health", db.HealthHandler(pool))
	facility.NewHandler(facilitySvc).RegisterRoutes(e)
	pincode.NewHandler(pincodeSvc).RegisterRoutes(e)
	triage.NewHandler(triageSvc).RegisterRoutes(e)
	routing.NewHandler(routingSvc, bbox).RegisterRoutes(e)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resolveStageSecret returns the clarification-token signing secret from
// STAGE_CACHE_SECRET or generates a random 32-byte secret. The second
// return value is true when a random secret was generated.
func resolveStageSecret(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		return []byte(envValue), false, nil
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("failed to generate random stage cache secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}
