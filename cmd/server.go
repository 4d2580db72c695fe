package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/config"
	"github.com/ziadkadry99/livepen/internal/metrics"
	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/server"
	"github.com/ziadkadry99/livepen/internal/session"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the playground server",
	Long:  `Starts the livepen HTTP server with the session API, browser preview hosts, saved pens and starter templates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		app, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer app.close()

		fmt.Fprintf(os.Stderr, "livepen server %s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.DatabasePath())
		return app.run(context.Background())
	},
}

// app is the wired server shared by the server and watch commands.
type app struct {
	log      *zap.Logger
	srv      *server.Server
	sessions *session.Manager
	close    func()
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	penStore := pens.NewStore(database)

	ai, err := createAssistantFromConfig(cfg, log, m)
	if err != nil {
		database.Close()
		return nil, err
	}

	sessions := session.NewManager(session.Config{
		DefaultMode: cfg.DefaultMode(),
		BlobGrace:   cfg.Preview.BlobGrace,
		Logger:      log,
		Metrics:     m,
		Assistant:   ai,
		Pens:        penStore,
	})

	srv := server.New(server.Config{
		Port:     cfg.Server.Port,
		AllowAll: cfg.Server.AllowAllOrigins,
	}, server.Deps{
		Sessions: sessions,
		Pens:     penStore,
		Metrics:  m,
		Logger:   log,
	})

	return &app{
		log:      log,
		srv:      srv,
		sessions: sessions,
		close: func() {
			sessions.CloseAll()
			database.Close()
			log.Sync()
		},
	}, nil
}

// run serves until ctx is done or the process is interrupted.
func (a *app) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", config.DefaultPort, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
