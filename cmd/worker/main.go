package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"comfy-worker/internal/config"
	"comfy-worker/internal/entity"
	"comfy-worker/internal/infra"
	"comfy-worker/internal/pipeline"
	"comfy-worker/internal/queue"
	"comfy-worker/internal/service"
	"comfy-worker/internal/storage"
	httptransport "comfy-worker/internal/transport/http"
	"comfy-worker/internal/trigger"
	"comfy-worker/internal/worker"
)

func main() {
	mode := flag.String("mode", "run", "execution mode: run | serve | queue")
	input := flag.String("input", "", "job payload file for run mode (default: stdin)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := pipeline.NewClient(cfg.PipelineURL, cfg.RequestTimeout, log)

	var launcher pipeline.Launcher
	if cfg.PipelineCmd != "" {
		launcher = pipeline.NewCommandLauncher(cfg.PipelineCmd, cfg.PipelineCmdArgs, log)
	}
	sup := pipeline.NewSupervisor(client, launcher, log)
	defer sup.Shutdown()

	svc := service.NewJobService(
		sup,
		client,
		pipeline.NewMonitor(client, cfg.PollInterval, cfg.MaxPollErrors, log),
		pipeline.NewCollector(cfg.OutputDir, log),
		storage.NewS3Uploader(log),
		trigger.NewRegistry(log),
		service.Config{
			ReadyTimeout:  cfg.ReadyTimeout,
			MaxWait:       cfg.MaxWait,
			UploadTimeout: cfg.UploadTimeout,
			RefreshWorker: cfg.RefreshWorker,
		},
		log,
	)

	switch *mode {
	case "run":
		os.Exit(runOnce(ctx, svc, *input, log))
	case "serve":
		serve(ctx, cfg, svc, client, log)
	case "queue":
		runQueue(ctx, cfg, svc, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want run, serve or queue)\n", *mode)
		os.Exit(1)
	}
}

// runOnce executes a single job payload and reports the result on
// stdout, with the exit code encoding the error kind.
func runOnce(ctx context.Context, svc *service.JobService, input string, log zerolog.Logger) int {
	payload, err := readPayload(input)
	if err != nil {
		log.Error().Err(err).Msg("reading job payload")
		return service.KindInvalidJobRequest.ExitCode()
	}

	req, err := entity.ParseJobPayload(payload)
	if err != nil {
		res := &entity.JobResult{
			Status:       entity.StatusError,
			ErrorKind:    string(service.KindInvalidJobRequest),
			ErrorMessage: err.Error(),
		}
		printResult(res)
		return service.KindInvalidJobRequest.ExitCode()
	}

	res := svc.Run(ctx, req)
	printResult(res)
	return service.Kind(res.ErrorKind).ExitCode()
}

func readPayload(input string) ([]byte, error) {
	if input == "" || input == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(input)
}

func printResult(res *entity.JobResult) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(res)
}

func serve(ctx context.Context, cfg config.Config, svc *service.JobService, client *pipeline.Client, log zerolog.Logger) {
	h := httptransport.NewHandler(svc, client, log)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httptransport.Routes(h, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("http server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("http server stopped")
}

func runQueue(ctx context.Context, cfg config.Config, svc *service.JobService, log zerolog.Logger) {
	if cfg.RedisAddr == "" {
		log.Fatal().Msg("queue mode requires REDIS_ADDR")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis")
	}
	defer rdb.Close()

	src := queue.New(rdb, cfg.QueueKey, cfg.ProcessingKey, cfg.ResultsKey, log)

	log.Info().
		Str("redis_addr", cfg.RedisAddr).
		Str("queue_key", cfg.QueueKey).
		Str("processing_key", cfg.ProcessingKey).
		Msg("queue worker started")

	worker.NewLoop(src, svc, log).Run(ctx)
}
