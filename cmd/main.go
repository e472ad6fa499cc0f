package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	bmh "github.com/zing-dev/bmh-sdk"
	"github.com/zing-dev/bmh-sdk/internal/config"
	"github.com/zing-dev/bmh-sdk/internal/publish"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "config file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("bmh v%s (build: %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		if !errors.Is(err, os.ErrNotExist) {
			os.Exit(1)
		}
		cfg = config.GetDefaultConfig()
		fmt.Println("using default config")
	}

	log := setupLogger(cfg.Log)
	log.Infof("bmh v%s starting, config %s", Version, *configFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("bye")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	handler := newHandler(cfg, log)
	if cfg.Monitor.Enabled {
		reg := prometheus.NewRegistry()
		handler.Metrics = bmh.NewMetrics(reg)
		startMetricsServer(cfg.Monitor.MetricsPort, reg, log)
	}

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Serial.Address, err)
	}
	defer handler.Close()

	// 模块上电后等待稳定, 丢弃启动时的输出
	if !sleep(ctx, cfg.Serial.Settle) {
		return ctx.Err()
	}
	if err := handler.Discard(); err != nil {
		log.WithError(err).Warn("flush after settle")
	}

	var publisher *publish.Publisher
	if cfg.Redis.Enabled {
		var err error
		publisher, err = publish.NewPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel,
			cfg.Redis.DB, cfg.Redis.PoolSize, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	c, err := newCycle(bmh.NewClient(handler), cfg, log)
	if err != nil {
		return err
	}
	for n := 1; cfg.Cycle.Count == 0 || n <= cfg.Cycle.Count; n++ {
		m, err := c.run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			log.WithError(err).WithField("cycle", n).Error("measurement failed")
		default:
			report(log, n, m)
			if publisher != nil {
				if _, err = publisher.Publish(ctx, m); err != nil {
					log.WithError(err).Warn("publish failed")
				}
			}
		}
		if !sleep(ctx, cfg.Cycle.Interval) {
			return ctx.Err()
		}
	}
	return nil
}

func newHandler(cfg *config.Config, log *logrus.Logger) *bmh.ClientHandler {
	handler := bmh.NewClientHandler(cfg.Serial.Address)
	handler.BaudRate = cfg.Serial.BaudRate
	handler.DataBits = cfg.Serial.DataBits
	handler.StopBits = cfg.Serial.StopBits
	handler.Parity = cfg.Serial.Parity
	handler.Timeout = cfg.Serial.ReadTimeout
	handler.IdleTimeout = cfg.Serial.IdleTimeout
	handler.ResponseTimeout = cfg.Transaction.Timeout
	handler.PollInterval = cfg.Transaction.PollInterval
	handler.VerifyChecksum = cfg.Transaction.VerifyChecksum
	handler.Logger = log
	return handler
}

func report(log logrus.FieldLogger, n int, m *publish.Measurement) {
	c := m.Composition
	entry := log.WithFields(logrus.Fields{
		"cycle":            n,
		"mode":             m.Mode,
		"impedance":        m.Impedance.Value,
		"body_fat":         c.BodyFat,
		"water":            c.Water,
		"muscle_mass":      fmt.Sprintf("%.1f", c.MuscleMass),
		"bone_mass":        c.BoneMass,
		"bmr":              c.BMR,
		"visceral_fat":     c.VisceralFat,
		"bmi":              c.BMI,
		"body_age":         c.BodyAge,
		"protein":          c.Protein,
		"subcutaneous_fat": c.SubcutaneousFat,
	})
	if l := m.Levels; l != nil {
		entry = entry.WithFields(logrus.Fields{
			"fat_level":      l.Fat,
			"water_level":    l.Water,
			"muscle_level":   l.Muscle,
			"bone_level":     l.Bone,
			"bmr_level":      l.BMR,
			"visceral_level": l.Visceral,
			"bmi_level":      l.BMI,
			"protein_level":  l.Protein,
			"subcut_level":   l.SubcutaneousFat,
		})
	}
	entry.Info("body composition")
}

// sleep waits d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func startMetricsServer(port int, reg *prometheus.Registry, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	log.Infof("metrics server listening on %s", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server: %v", err)
		}
	}()
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file: %v, falling back to stdout", err)
		}
	}

	return log
}
