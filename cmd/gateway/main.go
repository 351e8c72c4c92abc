// Package main provides the claude-cli-proxy gateway entrypoint: an HTTP
// server that multiplexes concurrent callers onto a single downstream
// claude CLI installation.
//
// Usage:
//
//	gateway [options]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dazedpro/claude-cli-proxy/archive"
	"github.com/dazedpro/claude-cli-proxy/cache"
	"github.com/dazedpro/claude-cli-proxy/config"
	"github.com/dazedpro/claude-cli-proxy/executor"
	"github.com/dazedpro/claude-cli-proxy/httpapi"
	"github.com/dazedpro/claude-cli-proxy/iox"
	"github.com/dazedpro/claude-cli-proxy/log"
	"github.com/dazedpro/claude-cli-proxy/metrics"
	"github.com/dazedpro/claude-cli-proxy/notify"
	"github.com/dazedpro/claude-cli-proxy/scheduler"
	"github.com/dazedpro/claude-cli-proxy/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "gateway",
		Usage:          "HTTP gateway multiplexing callers onto a single claude CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Flags:          flags(),
		Action:         runAction,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit(), matching the
// teacher's ExitCoder-aware error handling.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Path to gateway.yaml", EnvVars: []string{"GATEWAY_CONFIG"}},
		&cli.IntFlag{Name: "port", Usage: "HTTP listen port", EnvVars: []string{"GATEWAY_PORT"}},
		&cli.IntFlag{Name: "max-concurrent", Usage: "Max concurrent child processes", EnvVars: []string{"GATEWAY_MAX_CONCURRENT"}},
		&cli.IntFlag{Name: "max-queue-depth", Usage: "Max queued requests", EnvVars: []string{"GATEWAY_MAX_QUEUE_DEPTH"}},
		&cli.IntFlag{Name: "queue-timeout-ms", Usage: "Queue wait deadline in ms", EnvVars: []string{"GATEWAY_QUEUE_TIMEOUT_MS"}},
		&cli.IntFlag{Name: "default-max-turns", Usage: "Default --max-turns", EnvVars: []string{"GATEWAY_DEFAULT_MAX_TURNS"}},
		&cli.IntFlag{Name: "default-timeout-ms", Usage: "Default execution timeout in ms", EnvVars: []string{"GATEWAY_DEFAULT_TIMEOUT_MS"}},
		&cli.StringFlag{Name: "proxy-api-key", Usage: "Shared secret required of callers", EnvVars: []string{"GATEWAY_PROXY_API_KEY"}},
		&cli.StringFlag{Name: "claude-binary", Usage: "Downstream CLI binary name (default \"claude\")", EnvVars: []string{"GATEWAY_CLAUDE_BINARY"}},
		&cli.StringFlag{Name: "permission-mode", Usage: "--permission-mode passed to claude (default \"default\")", EnvVars: []string{"GATEWAY_PERMISSION_MODE"}},

		&cli.StringFlag{Name: "archive-bucket", Usage: "S3 bucket for audit archival (enables archiving)", EnvVars: []string{"GATEWAY_ARCHIVE_BUCKET"}},
		&cli.StringFlag{Name: "archive-dataset", Usage: "Lode dataset id", Value: archive.DefaultDataset, EnvVars: []string{"GATEWAY_ARCHIVE_DATASET"}},
		&cli.StringFlag{Name: "archive-source", Usage: "Archive source partition key", Value: "gateway", EnvVars: []string{"GATEWAY_ARCHIVE_SOURCE"}},
		&cli.StringFlag{Name: "archive-category", Usage: "Archive category partition key", Value: "completion", EnvVars: []string{"GATEWAY_ARCHIVE_CATEGORY"}},
		&cli.StringFlag{Name: "archive-region", Usage: "S3 region", EnvVars: []string{"GATEWAY_ARCHIVE_REGION"}},
		&cli.StringFlag{Name: "archive-endpoint", Usage: "S3-compatible endpoint override", EnvVars: []string{"GATEWAY_ARCHIVE_ENDPOINT"}},

		&cli.StringFlag{Name: "redis-url", Usage: "Redis URL for the response cache (enables caching)", EnvVars: []string{"GATEWAY_REDIS_URL"}},

		&cli.StringFlag{Name: "webhook-url", Usage: "Webhook URL for non-success outcome notifications", EnvVars: []string{"GATEWAY_WEBHOOK_URL"}},
		&cli.IntFlag{Name: "webhook-retries", Usage: "Webhook retry attempts beyond the first", EnvVars: []string{"GATEWAY_WEBHOOK_RETRIES"}},
		&cli.DurationFlag{Name: "webhook-backoff-step", Usage: "Webhook retry backoff growth per attempt", EnvVars: []string{"GATEWAY_WEBHOOK_BACKOFF_STEP"}},
		&cli.DurationFlag{Name: "webhook-backoff-ceiling", Usage: "Webhook retry backoff ceiling", EnvVars: []string{"GATEWAY_WEBHOOK_BACKOFF_CEILING"}},
	}
}

func runAction(c *cli.Context) error {
	fc, err := config.LoadFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg := types.Config{
		Port:             c.Int("port"),
		MaxConcurrent:    c.Int("max-concurrent"),
		MaxQueueDepth:    c.Int("max-queue-depth"),
		QueueTimeoutMs:   c.Int("queue-timeout-ms"),
		DefaultMaxTurns:  c.Int("default-max-turns"),
		DefaultTimeoutMs: c.Int("default-timeout-ms"),
		ProxyAPIKey:      c.String("proxy-api-key"),
		ClaudeBinary:     c.String("claude-binary"),
		PermissionMode:   c.String("permission-mode"),
	}
	cfg = config.Merge(cfg, fc)

	defaults := types.Defaults()
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.MaxQueueDepth == 0 {
		cfg.MaxQueueDepth = defaults.MaxQueueDepth
	}
	if cfg.QueueTimeoutMs == 0 {
		cfg.QueueTimeoutMs = defaults.QueueTimeoutMs
	}
	if cfg.DefaultMaxTurns == 0 {
		cfg.DefaultMaxTurns = defaults.DefaultMaxTurns
	}
	if cfg.DefaultTimeoutMs == 0 {
		cfg.DefaultTimeoutMs = defaults.DefaultTimeoutMs
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}

	logger := log.New()
	exec := executor.New(cfg.ClaudeBinary)
	collector := metrics.New()

	var archiver *archive.Archiver
	if bucket := c.String("archive-bucket"); bucket != "" {
		ctx := context.Background()
		s3cfg := archive.S3Config{
			Bucket:   bucket,
			Region:   c.String("archive-region"),
			Endpoint: c.String("archive-endpoint"),
		}
		client, err := archive.NewS3Client(ctx, c.String("archive-dataset"), c.String("archive-source"), c.String("archive-category"), s3cfg)
		if err != nil {
			return fmt.Errorf("archive client: %w", err)
		}
		archiver = archive.NewArchiver(archive.Config{Dataset: c.String("archive-dataset")}, client)
		defer iox.DiscardErr(archiver.Close)
	}

	var notifier *notify.Adapter
	webhookURL := c.String("webhook-url")
	if webhookURL == "" {
		webhookURL = fc.Notify.WebhookURL
	}
	if webhookURL != "" {
		retries := c.Int("webhook-retries")
		if retries == 0 {
			retries = fc.Notify.Retries
		}
		backoffStep := c.Duration("webhook-backoff-step")
		if backoffStep == 0 {
			backoffStep = fc.Notify.BackoffStep.Duration
		}
		backoffCeiling := c.Duration("webhook-backoff-ceiling")
		if backoffCeiling == 0 {
			backoffCeiling = fc.Notify.BackoffCeiling.Duration
		}
		notifier, err = notify.New(notify.Config{
			URL:            webhookURL,
			Headers:        fc.Notify.Headers,
			Retries:        retries,
			BackoffStep:    backoffStep,
			BackoffCeiling: backoffCeiling,
		})
		if err != nil {
			return fmt.Errorf("notify adapter: %w", err)
		}
		defer iox.DiscardClose(notifier)
	}

	onComplete := func(reqID string, req types.Request, resp types.Response, elapsedMs int64) {
		if archiver != nil && resp.Kind == types.KindSuccess {
			err := archiver.Archive(context.Background(), archive.Record{
				ReqID:        reqID,
				Prompt:       req.Prompt,
				Model:        resp.Model,
				Priority:     int(req.Priority),
				Outcome:      string(resp.Kind),
				ElapsedMs:    elapsedMs,
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				CompletedAt:  time.Now(),
			})
			if err != nil {
				logger.WithRequest(reqID).Warn("archive failed", map[string]any{"error": err.Error()})
			}
		}
		if notifier != nil {
			_ = notifier.Notify(context.Background(), reqID, req, resp, elapsedMs)
		}
	}

	sched := scheduler.New(cfg, exec, collector, logger, onComplete)

	var respCache httpapi.ResponseCache
	url := c.String("redis-url")
	if url == "" {
		url = fc.Cache.RedisURL
	}
	if url != "" {
		rc, err := cache.New(cache.Config{URL: url, TTL: fc.Cache.TTL.Duration})
		if err != nil {
			return fmt.Errorf("cache client: %w", err)
		}
		defer iox.DiscardClose(rc)
		respCache = rc
	}

	server := httpapi.NewServer(sched, logger, cfg.ProxyAPIKey, respCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("gateway listening", map[string]any{"addr": addr})
	if err := httpapi.StartServer(ctx, addr, server); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
