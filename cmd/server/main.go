package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployment"
	githubClient "github.com/imranansari/apigee-deploy-wf/github"
	"github.com/imranansari/apigee-deploy-wf/logging"
	"github.com/imranansari/apigee-deploy-wf/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logging.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	logger := logging.ServerLogger()

	logger.Info().
		Str("environment", cfg.App.Environment).
		Str("deploy_mode", cfg.Deploy.Mode).
		Bool("github_integration", cfg.App.GitHubIntegration).
		Str("addr", cfg.Server.Addr).
		Msg("Starting Apigee deployment form server")

	var workflowClient deployment.WorkflowClient
	if cfg.Deploy.Mode == config.ModeTemporal {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Temporal client")
		}
		defer temporalClient.Close()
		workflowClient = temporalClient
	}

	runner, err := deployment.NewRunner(cfg, workflowClient, logging.RunnerLogger(cfg.Deploy.Mode))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create deployment runner")
	}

	var githubService deployment.GitHubService
	if cfg.App.GitHubIntegration {
		factory := githubClient.NewClientFactory(cfg.GitHub, cfg.Secrets.GitHubPrivateKey, logging.GitHubLogger())
		githubService = githubClient.NewService(factory, logging.GitHubLogger())
	}

	newSession := func(id string) *deployment.Session {
		return deployment.NewSession(id, deployment.Options{
			GitHub: githubService,
			Runner: runner,
			Logger: logging.SessionLogger(id),
		})
	}

	srv := server.NewServer(cfg.Server, newSession, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Fatal().Err(err).Msg("Server error")
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
}
