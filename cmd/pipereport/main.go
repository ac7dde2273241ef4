// Package main wires together the pipeline reporter demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/JakeFAU/pipeline-reporter/internal/clock/system"
	"github.com/JakeFAU/pipeline-reporter/internal/config"
	"github.com/JakeFAU/pipeline-reporter/internal/job"
	"github.com/JakeFAU/pipeline-reporter/internal/logging"
	"github.com/JakeFAU/pipeline-reporter/internal/progress"
	"github.com/JakeFAU/pipeline-reporter/internal/progress/sinks"
	"github.com/JakeFAU/pipeline-reporter/internal/reporter"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("demo job failed", zap.Error(err))
		code = 1
	}
	stop()
	_ = logger.Sync() //nolint:errcheck // best-effort flush
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	bus := progress.NewBus(progress.Config{Logger: logger.Named("progress"), Clock: clk.Now})
	defer bus.Close()

	bus.Subscribe(sinks.NewLogSink(logger.Named("events")))

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		metricsSink, err := sinks.NewPrometheusSink(reg)
		if err != nil {
			return fmt.Errorf("metrics sink: %w", err)
		}
		bus.Subscribe(metricsSink)
	}

	rep := reporter.New(cfg.ReporterConfig(),
		reporter.WithClock(clk),
		reporter.WithLogger(logger.Named("reporter")),
	)
	report := rep.Attach(bus)
	defer report.Detach()

	j, err := job.New(newDemoProcessor(cfg.Demo, cfg.RowDelay()), newDemoDestinations(cfg.Demo), bus, job.Config{
		LoadRetries: cfg.Demo.LoadRetries,
		Clock:       clk.Now,
		Logger:      logger.Named("job"),
	})
	if err != nil {
		return fmt.Errorf("build job: %w", err)
	}
	logger.Info("starting demo job",
		zap.String("run_id", j.RunID()),
		zap.Int64("job_id", report.ID()),
		zap.Int("streams", cfg.Demo.Streams),
		zap.Int("destinations", cfg.Demo.Destinations),
	)

	runErr := j.Run(ctx)
	if reg != nil {
		logMetrics(logger, reg)
	}
	return runErr
}

// logMetrics writes the final value of every gathered series to the log.
func logMetrics(logger *zap.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			fields := []zap.Field{zap.String("metric", family.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				fields = append(fields, zap.Float64("value", m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum", m.GetHistogram().GetSampleSum()),
				)
			default:
				continue
			}
			logger.Info("metric", fields...)
		}
	}
}
