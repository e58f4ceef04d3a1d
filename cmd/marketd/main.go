package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fastmount/marketplace/internal/events"
	"github.com/fastmount/marketplace/internal/httpapi"
	"github.com/fastmount/marketplace/internal/store/gormstore"
	"github.com/fastmount/marketplace/internal/zaplog"
	"github.com/fastmount/marketplace/pkg/marketplace"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagAMQPURL        = "amqp-url"
	flagLeadFeeCents   = "lead-fee-cents"
	flagVoucherCents   = "voucher-cents"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyJWTSigningKey  = "jwt_signing_key"
	configKeyJWTIssuer      = "jwt_issuer"
	configKeyAMQPURL        = "amqp_url"
	configKeyLeadFeeCents   = "lead_fee_cents"
	configKeyVoucherCents   = "voucher_cents"

	defaultDatabaseURL = "sqlite:///tmp/marketplace.db"
	defaultListenAddr  = ":8080"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins string
	JWTSigningKey  string
	JWTIssuer      string
	AMQPURL        string
	LeadFeeCents   int64
	VoucherCents   int64
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marketd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "marketd",
		Short:         "TV installation marketplace API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma separated CORS origins")
	cmd.Flags().String(flagAMQPURL, "", "RabbitMQ URL for notification events (optional)")
	cmd.Flags().Int64(flagLeadFeeCents, 0, "lead fee charged per purchase, in cents")
	cmd.Flags().Int64(flagVoucherCents, 0, "first-lead voucher amount, in cents")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyJWTSigningKey:  "JWT_SIGNING_KEY",
		configKeyJWTIssuer:      "JWT_ISSUER",
		configKeyAMQPURL:        "AMQP_URL",
		configKeyLeadFeeCents:   "LEAD_FEE_CENTS",
		configKeyVoucherCents:   "VOUCHER_CENTS",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyAMQPURL:        flagAMQPURL,
		configKeyLeadFeeCents:   flagLeadFeeCents,
		configKeyVoucherCents:   flagVoucherCents,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.JWTSigningKey = viper.GetString(configKeyJWTSigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyJWTIssuer)
	cfg.AMQPURL = viper.GetString(configKeyAMQPURL)
	cfg.LeadFeeCents = viper.GetInt64(configKeyLeadFeeCents)
	cfg.VoucherCents = viper.GetInt64(configKeyVoucherCents)

	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }

	options := []marketplace.ServiceOption{
		marketplace.WithOperationLogger(zaplog.New(logger)),
	}
	if cfg.AMQPURL != "" {
		sink, sinkErr := events.NewRabbitSink(cfg.AMQPURL, logger)
		if sinkErr != nil {
			return fmt.Errorf("event sink init: %w", sinkErr)
		}
		defer func() { _ = sink.Close() }()
		options = append(options, marketplace.WithEventSink(sink))
	}

	service, err := marketplace.NewService(store, clock, options...)
	if err != nil {
		return fmt.Errorf("marketplace service init: %w", err)
	}

	apiConfig := httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
		LeadFeeCents:   cfg.LeadFeeCents,
		VoucherCents:   cfg.VoucherCents,
	}
	return httpapi.Run(ctx, apiConfig, service, logger)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "marketplace.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
