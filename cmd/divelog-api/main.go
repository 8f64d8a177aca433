package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/subseaops/divelog/internal/auth"
	"github.com/subseaops/divelog/internal/config"
	"github.com/subseaops/divelog/internal/database"
	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/jobs"
	"github.com/subseaops/divelog/internal/logging"
	"github.com/subseaops/divelog/internal/profiles"
	"github.com/subseaops/divelog/internal/reports"
	"github.com/subseaops/divelog/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "divelog-api",
		Short: "Dive operations log backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := dives.NewUUIDProvider()

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "divelog-auth",
		Audience:      "divelog-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	accountService, err := auth.NewService(auth.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Issuer:     tokenIssuer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{
		Database: db,
	})
	if err != nil {
		return err
	}

	jobService, err := jobs.NewService(jobs.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Clock:      time.Now,
	})
	if err != nil {
		return err
	}

	diverService, err := divers.NewService(divers.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	reportService, err := reports.NewService(reports.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	store, err := dives.NewStore(db)
	if err != nil {
		return err
	}

	dispatcher := server.NewRealtimeDispatcher()
	sessionManager, err := dives.NewManager(dives.ManagerConfig{
		Gateway:    store,
		Profiles:   profileService,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
		Notify: func(diveID string) {
			dispatcher.Publish(server.RealtimeMessage{
				EventType: server.RealtimeEventDiveChanged,
				DiveID:    diveID,
				Timestamp: time.Now().UTC(),
			})
		},
	})
	if err != nil {
		return err
	}
	defer sessionManager.Close()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:   accountService,
		Tokens:     tokenIssuer,
		Jobs:       jobService,
		Divers:     diverService,
		Sessions:   sessionManager,
		History:    store,
		Reports:    reportService,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      time.Now,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
