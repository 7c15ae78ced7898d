package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v58/github"
	"go.temporal.io/sdk/activity"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
	"github.com/imranansari/apigee-deploy-wf/logging"
)

// GitHubActivities record Apigee deployments as GitHub Deployments using the GitHub App
type GitHubActivities struct {
	clientFactory *githubClient.ClientFactory
}

// NewGitHubActivities creates a new instance of GitHub activities
func NewGitHubActivities(clientFactory *githubClient.ClientFactory) *GitHubActivities {
	return &GitHubActivities{
		clientFactory: clientFactory,
	}
}

// CreateGitHubDeployment creates a new deployment in GitHub
func (a *GitHubActivities) CreateGitHubDeployment(ctx context.Context, input CreateDeploymentInput) (*CreateDeploymentResult, error) {
	activityInfo := activity.GetInfo(ctx)
	logger := logging.ActivityLogger("CreateGitHubDeployment", activityInfo.WorkflowExecution.ID, activityInfo.WorkflowExecution.RunID)

	logger.Info().
		Str("repository", input.Repository).
		Str("ref", input.Ref).
		Str("environment", input.Environment).
		Msg("Creating GitHub deployment")

	owner, repo, err := githubClient.SplitFullName(input.Repository)
	if err != nil {
		return nil, nonRetryable(ValidationErrorType, err)
	}

	activity.RecordHeartbeat(ctx, "Creating GitHub client")

	client, err := a.clientFactory.ForOrg(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	payload := map[string]interface{}{
		"triggered_by": "apigee-deployment-workflow",
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range input.Payload {
		payload[k] = v
	}

	deploymentRequest := &github.DeploymentRequest{
		Ref:                   github.String(input.Ref),
		Task:                  github.String("deploy:apigee"),
		Environment:           github.String(input.Environment),
		Description:           github.String(truncateDescription(input.Description, 140)),
		ProductionEnvironment: github.Bool(input.Production),
		RequiredContexts:      &[]string{}, // Skip status checks for external deployments
		AutoMerge:             github.Bool(false),
		Payload:               payload,
	}

	activity.RecordHeartbeat(ctx, "Calling GitHub API")

	deployment, _, err := client.Repositories.CreateDeployment(ctx, owner, repo, deploymentRequest)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create GitHub deployment")
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	result := &CreateDeploymentResult{
		DeploymentID: deployment.GetID(),
		URL:          deployment.GetURL(),
		Environment:  deployment.GetEnvironment(),
	}

	logger.Info().
		Int64("deployment_id", result.DeploymentID).
		Str("url", result.URL).
		Msg("Successfully created GitHub deployment")

	return result, nil
}

// UpdateGitHubDeploymentStatus updates the status of a deployment
func (a *GitHubActivities) UpdateGitHubDeploymentStatus(ctx context.Context, input UpdateDeploymentStatusInput) error {
	activityInfo := activity.GetInfo(ctx)
	logger := logging.ActivityLogger("UpdateGitHubDeploymentStatus", activityInfo.WorkflowExecution.ID, activityInfo.WorkflowExecution.RunID)

	logger.Info().
		Str("repository", input.Repository).
		Int64("deployment_id", input.DeploymentID).
		Str("state", input.State).
		Msg("Updating GitHub deployment status")

	owner, repo, err := githubClient.SplitFullName(input.Repository)
	if err != nil {
		return nonRetryable(ValidationErrorType, err)
	}

	activity.RecordHeartbeat(ctx, "Creating GitHub client")

	client, err := a.clientFactory.ForOrg(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	statusRequest := &github.DeploymentStatusRequest{
		State:        github.String(input.State),
		Description:  github.String(truncateDescription(input.Description, 140)),
		AutoInactive: github.Bool(true),
	}
	if input.LogURL != "" {
		statusRequest.LogURL = github.String(input.LogURL)
	}
	if input.EnvironmentURL != "" {
		statusRequest.EnvironmentURL = github.String(input.EnvironmentURL)
	}

	activity.RecordHeartbeat(ctx, "Calling GitHub API")

	status, _, err := client.Repositories.CreateDeploymentStatus(ctx, owner, repo, input.DeploymentID, statusRequest)
	if err != nil {
		logger.Error().Err(err).
			Str("state", input.State).
			Msg("Failed to update GitHub deployment status")
		return fmt.Errorf("failed to update deployment status: %w", err)
	}

	logger.Info().
		Str("state", status.GetState()).
		Str("url", status.GetURL()).
		Msg("Successfully updated GitHub deployment status")

	return nil
}

// truncateDescription ensures description doesn't exceed GitHub's limit
func truncateDescription(desc string, maxLen int) string {
	if len(desc) <= maxLen {
		return desc
	}
	return desc[:maxLen-3] + "..."
}
