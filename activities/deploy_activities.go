package activities

import (
	"context"
	"errors"
	"net/http"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
	"github.com/imranansari/apigee-deploy-wf/logging"
)

// Error types the workflow retry policy treats as final
const (
	ValidationErrorType     = "ValidationError"
	AuthenticationErrorType = "AuthenticationError"
)

// DeployActivities call the deployment backend
type DeployActivities struct {
	client *deployapi.Client
}

// NewDeployActivities creates a new instance of deployment activities
func NewDeployActivities(client *deployapi.Client) *DeployActivities {
	return &DeployActivities{client: client}
}

// ValidateProxyConfig asks the backend to validate the deployment configuration
func (a *DeployActivities) ValidateProxyConfig(ctx context.Context, cfg deployapi.Config) (*deployapi.Response, error) {
	activityInfo := activity.GetInfo(ctx)
	logger := logging.ActivityLogger("ValidateProxyConfig", activityInfo.WorkflowExecution.ID, activityInfo.WorkflowExecution.RunID)

	logger.Info().
		Str("proxy", cfg.ProxyName).
		Str("environment_group", cfg.EnvironmentGroup).
		Str("environment_type", cfg.EnvironmentType).
		Msg("Validating proxy configuration")

	resp, err := a.client.Validate(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Proxy configuration validation failed")
		return nil, classify(err)
	}
	if !resp.Success {
		return nil, temporal.NewNonRetryableApplicationError(failureMessage(resp, "Validation failed"), ValidationErrorType, nil)
	}

	return resp, nil
}

// DeployProxy asks the backend to deploy the proxy
func (a *DeployActivities) DeployProxy(ctx context.Context, cfg deployapi.Config) (*deployapi.Response, error) {
	activityInfo := activity.GetInfo(ctx)
	logger := logging.ActivityLogger("DeployProxy", activityInfo.WorkflowExecution.ID, activityInfo.WorkflowExecution.RunID)

	logger.Info().
		Str("proxy", cfg.ProxyName).
		Str("proxy_directory", cfg.ProxyDirectory).
		Msg("Deploying proxy")

	activity.RecordHeartbeat(ctx, "Calling deploy API")

	resp, err := a.client.Deploy(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Proxy deployment failed")
		return nil, classify(err)
	}
	if !resp.Success {
		return nil, temporal.NewNonRetryableApplicationError(failureMessage(resp, "Deployment failed"), ValidationErrorType, nil)
	}

	logger.Info().Str("message", resp.Message).Msg("Proxy deployed")
	return resp, nil
}

// classify marks client errors as final so they are not retried
func classify(err error) error {
	var apiErr *deployapi.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return nonRetryable(AuthenticationErrorType, err)
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return nonRetryable(ValidationErrorType, err)
	default:
		return temporal.NewApplicationError(err.Error(), "DeployAPIError")
	}
}

func nonRetryable(errType string, err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, nil)
}

func failureMessage(resp *deployapi.Response, fallback string) string {
	switch {
	case resp.Message != "":
		return resp.Message
	case resp.Error != "":
		return resp.Error
	default:
		return fallback
	}
}
