package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hearthsync/internal/control"
	"hearthsync/internal/handlers"
	"hearthsync/internal/logger"
	"hearthsync/internal/repository"
	"hearthsync/internal/server"
	"hearthsync/internal/service"
	"hearthsync/internal/session"
	"hearthsync/internal/transport/cloud"

	"github.com/spf13/viper"
)

// @title           hearthsync API
// @version         1.0
// @description     Bridge between fireplace appliances, their cloud relay, and local clients.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config.yml before anything that reads it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	level := viper.GetString("log.level")
	if level == "" {
		level = logger.InfoLevel
	}
	log := logger.Get(level)

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(db)

	baseURL := strings.TrimRight(viper.GetString("cloud.base_url"), "/")
	sess := session.NewManager(baseURL+"/a/login", repos.Sessions, viper.GetBool("cloud.save_credentials"), log)
	if err := sess.Restore(ctx); err != nil {
		log.Errorw("session restore failed", "err", err)
	}
	cloudClient := cloud.NewClient(baseURL, sess)

	manager := control.NewManager(controlConfig(), repos, cloudClient, viper.GetString("local.user_id"), log)
	sess.OnInvalidate(manager.HaltCloud)
	if err := manager.Start(ctx); err != nil {
		log.Fatalw("failed to start controllers", "err", err)
	}

	services := service.NewService(repos, service.NewManagerRegistry(manager), sess, cloudClient, log)
	apiHandler := handlers.NewHandler(services, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, manager, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// controlConfig reads the transport selection; intervals keep their defaults.
func controlConfig() control.Config {
	return control.Config{
		CloudCommands:   viper.GetBool("control.cloud_commands"),
		CloudPolling:    viper.GetBool("control.cloud_polling"),
		LocalFallback:   viper.GetBool("control.local_fallback"),
		RestoreFanSpeed: viper.GetBool("control.restore_fan_speed"),
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "hearthsync.db")
		dbPath = "hearthsync.db"
	}
	return repository.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, manager *control.Manager, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop polling loops, then background goroutines
	manager.StopAll()
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
