package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"certiread/internal/config"
	"certiread/internal/database"
	"certiread/internal/handlers"
	"certiread/internal/logger"
	"certiread/internal/metrics"
	"certiread/internal/models"
	"certiread/internal/services"
	"certiread/internal/web"
)

var rootCmd = &cobra.Command{
	Use:           "certiread",
	Short:         "Content transparency certificates for verified publishers",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		log.WithField("driver", cfg.DatabaseDriver).Info("database schema is up to date")
		return closeDB(db)
	},
}

var checkMethod string

var checkCmd = &cobra.Command{
	Use:   "check <domain> <token>",
	Short: "Run a domain verification challenge without touching the database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		method, err := models.ParseVerificationMethod(strings.ToUpper(checkMethod))
		if err != nil {
			return err
		}
		domain := services.NormalizeDomain(args[0])
		if !services.ValidHostname(domain) {
			return errors.Errorf("invalid domain %q", args[0])
		}
		challenger, err := newChallenger(cfg, nil)
		if err != nil {
			return err
		}
		out, err := challenger.Check(cmd.Context(), domain, args[1], method)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Message)
		if out.Source != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "matched: %s\n", out.Source)
		}
		if !out.Verified {
			return errors.New("domain not verified")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkMethod, "method", "m", string(models.MethodDNS), "verification method (DNS or META)")
	rootCmd.AddCommand(serveCmd, migrateCmd, checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(database.Config{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		DSN:    cfg.DatabaseDSN,
		Debug:  cfg.DatabaseDebug,
	})
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// releaseDB closes db on shutdown paths that have no error to return.
func releaseDB(db *gorm.DB) {
	if err := closeDB(db); err != nil {
		log.WithError(err).Warn("failed to close database")
	}
}

func newChallenger(cfg *config.Config, m *metrics.Metrics) (*services.Challenger, error) {
	client, err := services.NewHTTPClient(cfg.VerifyProxyURL)
	if err != nil {
		return nil, err
	}
	return services.NewChallenger(services.ChallengerConfig{
		Prefix:       cfg.VerifyPrefix,
		FetchTimeout: cfg.VerifyFetchTimeout,
		TotalTimeout: cfg.VerifyTotalTimeout,
	}, services.NewResolver(cfg.VerifyDNSServer), client, m), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer releaseDB(db)

	m := metrics.New(prometheus.DefaultRegisterer)
	challenger, err := newChallenger(cfg, m)
	if err != nil {
		return err
	}
	certs := services.NewCertificateService(db, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.Round(time.Millisecond),
				"remote":  v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	}))

	renderer, err := web.NewRenderer(web.FS)
	if err != nil {
		return err
	}
	e.Renderer = renderer

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	handlers.RegisterRoutes(e, handlers.Deps{
		DB:           db,
		Publishers:   services.NewPublisherService(db, services.DefaultArgon2idParams()),
		Domains:      services.NewDomainService(db, challenger),
		Certificates: certs,
		Authors:      services.NewAuthorService(db),
		Badges:       services.NewBadgeService(certs, m),
		ServerName:   cfg.ServerName,
		BaseURL:      cfg.PublicBaseURL,
	})

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":   cfg.ListenAddr,
			"public": cfg.PublicBaseURL,
		}).Infof("%s starting", cfg.ServerName)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-cmd.Context().Done():
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
