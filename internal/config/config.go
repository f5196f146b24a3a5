package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the worker reads from the environment.
// One pipeline process per worker; addresses default to a pipeline
// running next to the worker in the same container.
type Config struct {
	AppEnv string

	// Pipeline server.
	PipelineURL     string
	PipelineCmd     string
	PipelineCmdArgs []string
	OutputDir       string

	// Supervisor.
	ReadyTimeout time.Duration

	// Progress monitor.
	PollInterval   time.Duration
	MaxWait        time.Duration
	MaxPollErrors  int
	UploadTimeout  time.Duration
	RequestTimeout time.Duration

	// serve mode.
	ListenAddr string

	// queue mode.
	RedisAddr     string
	QueueKey      string
	ProcessingKey string
	ResultsKey    string

	// Platform control: ask the dispatcher to recycle the worker after
	// each job when set.
	RefreshWorker bool
}

func Load() Config {
	// PIPELINE_CMD holds the full launch command line, e.g.
	// "python /comfyui/main.py --listen 127.0.0.1".
	cmd, args := splitCommand(os.Getenv("PIPELINE_CMD"))

	return Config{
		AppEnv: EnvOr("APP_ENV", "production"),

		PipelineURL:     EnvOr("PIPELINE_URL", "http://127.0.0.1:8188"),
		PipelineCmd:     cmd,
		PipelineCmdArgs: args,
		OutputDir:       EnvOr("PIPELINE_OUTPUT_PATH", "/comfyui/output"),

		ReadyTimeout: EnvDurationOr("PIPELINE_READY_TIMEOUT_MS", 25*time.Second),

		PollInterval:   EnvDurationOr("POLLING_INTERVAL_MS", 250*time.Millisecond),
		MaxWait:        EnvDurationOr("POLLING_MAX_WAIT_MS", 20*time.Minute),
		MaxPollErrors:  EnvIntOr("POLLING_MAX_ERRORS", 5),
		UploadTimeout:  EnvDurationOr("UPLOAD_TIMEOUT_MS", 2*time.Minute),
		RequestTimeout: EnvDurationOr("REQUEST_TIMEOUT_MS", 10*time.Second),

		ListenAddr: EnvOr("LISTEN_ADDR", ":8080"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		QueueKey:      EnvOr("REDIS_QUEUE_KEY", "jobs:queue"),
		ProcessingKey: EnvOr("REDIS_PROCESSING_KEY", "jobs:processing"),
		ResultsKey:    EnvOr("REDIS_RESULTS_KEY", "jobs:results"),

		RefreshWorker: EnvBoolOr("REFRESH_WORKER", false),
	}
}

func splitCommand(s string) (string, []string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func EnvOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func EnvIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// EnvDurationOr reads a millisecond count, matching the knobs the
// deployment recipes already set.
func EnvDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func EnvBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

var dsnPassRe = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password of a postgres-style DSN for logging.
func RedactDSN(dsn string) string {
	return dsnPassRe.ReplaceAllString(dsn, `://$1:****@`)
}
