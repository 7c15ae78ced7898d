package deployment

import (
	"errors"
	"net/http"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

// NewDeployAPIClient creates a deployment backend client from configuration
func NewDeployAPIClient(cfg config.DeployConfig, logger zerolog.Logger) *deployapi.Client {
	return deployapi.NewClient(cfg.APIBaseURL, logger,
		deployapi.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
}

// NewRunner selects the Runner for the configured deploy mode.
// wc is only required in temporal mode.
func NewRunner(cfg *config.Config, wc WorkflowClient, logger zerolog.Logger) (Runner, error) {
	switch cfg.Deploy.Mode {
	case config.ModeAPI:
		return NewAPIRunner(NewDeployAPIClient(cfg.Deploy, logger), clock.New(), cfg.Deploy.StepDelay), nil
	case config.ModeTemporal:
		if wc == nil {
			return nil, errors.New("temporal deploy mode requires a Temporal client")
		}
		return NewTemporalRunner(wc, TemporalRunnerOptions{
			TaskQueue:               cfg.Temporal.TaskQueue,
			PollInterval:            cfg.Temporal.PollInterval,
			Logger:                  logger,
			RecordGitHubDeployments: cfg.GitHubAppEnabled(),
		}), nil
	default:
		return NewSimulatedRunner(clock.New(), cfg.Deploy.StepDelay), nil
	}
}
