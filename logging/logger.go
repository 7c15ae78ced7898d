package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes zerolog with the specified configuration
func InitLogger(level string, format string) {
	InitLoggerTo(os.Stdout, level, format)
}

// InitLoggerTo initializes zerolog to write to w
func InitLoggerTo(w io.Writer, level string, format string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if format == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		// JSON format (default)
		log.Logger = zerolog.New(w).With().
			Timestamp().
			Caller().
			Logger()
	}

	log.Logger = log.With().
		Str("service", "apigee-deployment-manager").
		Logger()
}

// ActivityLogger creates a logger for Temporal activities
func ActivityLogger(activityName string, workflowID string, runID string) zerolog.Logger {
	return log.With().
		Str("activity", activityName).
		Str("workflow_id", workflowID).
		Str("run_id", runID).
		Str("component", "activity").
		Logger()
}

// GitHubLogger creates a logger for GitHub API operations
func GitHubLogger() zerolog.Logger {
	return log.With().
		Str("component", "github").
		Logger()
}

// SessionLogger creates a logger for a deployment form session
func SessionLogger(sessionID string) zerolog.Logger {
	return log.With().
		Str("session_id", sessionID).
		Str("component", "session").
		Logger()
}

// ServerLogger creates a logger for the HTTP server
func ServerLogger() zerolog.Logger {
	return log.With().
		Str("component", "server").
		Logger()
}

// RunnerLogger creates a logger for deployment runners
func RunnerLogger(mode string) zerolog.Logger {
	return log.With().
		Str("deploy_mode", mode).
		Str("component", "runner").
		Logger()
}

// WorkerLogger creates a logger for the Temporal worker process
func WorkerLogger() zerolog.Logger {
	return log.With().
		Str("component", "worker").
		Logger()
}
