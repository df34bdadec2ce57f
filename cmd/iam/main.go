package main

import (
	"context"
	"crypto"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/iam/pkg/api"
	"github.com/platinummonkey/iam/pkg/audit"
	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/config"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
	"github.com/platinummonkey/iam/pkg/storage/database"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("IAM service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) (err error) {
	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	onShutdown := shutdown.RegisterShutdownFunc

	// Until the server is running, a startup failure releases whatever was
	// already opened.
	serving := false
	defer func() {
		if err != nil && !serving {
			if cerr := shutdown.Shutdown(context.Background()); cerr != nil {
				logger.WithError(cerr).Warn("Cleanup after failed startup was incomplete")
			}
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		onShutdown("opentelemetry", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Storage
	db, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	onShutdown("database", func(context.Context) error { return db.Close() })

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	var store storage.UserStore = database.NewUserStore(db)
	var redisClient *redis.Client
	if cfg.Storage.CacheEnabled {
		redisClient, err = database.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		onShutdown("redis", func(context.Context) error { return redisClient.Close() })
		store = database.NewCachedUserStore(store, redisClient, cfg.Storage)
		logger.Info("User cache enabled")
	}

	// Keys
	signingKey, err := auth.LoadPrivateKeyFile(cfg.JWT.Algorithm, cfg.JWT.SigningKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		Algorithm:  cfg.JWT.Algorithm,
		SigningKey: signingKey,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Validity:   cfg.JWT.Expiry,
	})
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	keySet, err := cfg.JWT.LoadVerificationKeys()
	if err != nil {
		return fmt.Errorf("failed to load verification keys: %w", err)
	}
	if keySet.Len() == 0 {
		return errors.New("verification key set is empty")
	}
	checkSigningKeyListed(keySet, codec.PublicKey(), logger)
	metrics.VerificationKeys.Set(float64(keySet.Len()))

	ring := auth.NewKeyRing(keySet)
	watcher := config.NewKeyWatcher(cfg.JWT, ring, logger, metrics)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	onShutdown("key watcher", func(context.Context) error { return watcher.Stop() })

	// Audit trail
	auditSink, err := openAuditSink(ctx, cfg.Audit, logger, onShutdown)
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		Store:        store,
		Hasher:       auth.NewPasswordHasher(cfg.Password.BcryptCost),
		Codec:        codec,
		KeyRing:      ring,
		Logger:       logger,
		Metrics:      metrics,
		Registry:     metricsRegistry(cfg, registry),
		Health:       observability.NewHealthChecker(db, redisClient, version),
		AuditSink:    auditSink,
		CORS:         cfg.CORS,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ServiceName:  cfg.Observability.OTelServiceName,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown.SetServer(httpServer)
	serving = true

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":      httpServer.Addr,
			"algorithm": codec.Algorithm(),
			"keys":      keySet.Labels(),
		}).Info("Starting IAM service")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return eg.Wait()
}

// openAuditSink opens the rotating audit file and, when configured, the S3
// archive for rotated files
func openAuditSink(ctx context.Context, cfg config.AuditConfig, logger *observability.Logger, onShutdown func(string, observability.ShutdownFunc)) (audit.Sink, error) {
	fileCfg := audit.RotatingFileConfig{
		Dir:      cfg.Dir,
		MaxSize:  cfg.MaxFileSize,
		MaxFiles: cfg.MaxFiles,
	}

	if cfg.ArchiveEnabled() {
		s3Cfg := audit.S3Config{
			Bucket:       cfg.ArchiveBucket,
			Prefix:       cfg.ArchivePrefix,
			Region:       cfg.ArchiveRegion,
			Endpoint:     cfg.ArchiveEndpoint,
			AccessKey:    cfg.ArchiveAccessKey,
			SecretKey:    cfg.ArchiveSecretKey,
			UsePathStyle: cfg.ArchiveUsePathStyle,
		}
		client, err := audit.NewS3Client(ctx, s3Cfg)
		if err != nil {
			return nil, err
		}
		// Uploads outlive the signal context so the final drain can finish
		archiver := audit.NewS3Archiver(client, s3Cfg, logger)
		archiver.Start(context.Background())
		// Cleanup runs in reverse order: the file closes before the archive drains
		onShutdown("audit archiver", archiver.Close)
		fileCfg.OnRotate = archiver.Enqueue
		logger.WithField("bucket", cfg.ArchiveBucket).Info("Audit archive enabled")
	}

	writer, err := audit.NewRotatingFileWriter(fileCfg)
	if err != nil {
		return nil, err
	}
	onShutdown("audit log", func(context.Context) error { return writer.Close() })

	logger.WithField("path", writer.Path()).Info("Audit log opened")
	return audit.NewLogrusSink(writer), nil
}

func checkSigningKeyListed(set *auth.KeySet, pub crypto.PublicKey, logger *observability.Logger) {
	if !set.Contains(pub) {
		logger.WithField("labels", set.Labels()).
			Warn("Signing key is not in the verification key set; issued tokens will be rejected")
	}
}

func metricsRegistry(cfg *config.Config, registry *prometheus.Registry) *prometheus.Registry {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return registry
}
