package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/imranansari/apigee-deploy-wf/activities"
	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

const (
	WorkflowTimeout = 30 * time.Minute
)

// ApigeeDeploymentWorkflow runs the deployment steps of an Apigee proxy
func ApigeeDeploymentWorkflow(ctx workflow.Context, input DeploymentWorkflowInput) (*DeploymentWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	result := &DeploymentWorkflowResult{
		ProxyName:   input.Config.ProxyName,
		Environment: EnvironmentName(input.Config),
	}
	startTime := workflow.Now(ctx)

	progress := Progress{}
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register progress query: %w", err)
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ValidationErrorType, activities.AuthenticationErrorType},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger.Info("Starting Apigee deployment workflow",
		"proxy", input.Config.ProxyName,
		"environment", result.Environment,
		"repository", input.Repository,
		"branch", input.Branch)

	var deployActivities *activities.DeployActivities
	var githubActivities *activities.GitHubActivities

	// Recording in GitHub is best effort, a failure does not stop the deployment
	if input.RecordGitHubDeployment {
		var created *activities.CreateDeploymentResult
		err := workflow.ExecuteActivity(ctx, githubActivities.CreateGitHubDeployment, activities.CreateDeploymentInput{
			Repository:  input.Repository,
			Ref:         input.Branch,
			Environment: result.Environment,
			Description: fmt.Sprintf("Apigee proxy %s", input.Config.ProxyName),
			Production:  input.Config.EnvironmentType == config.EnvironmentTypeProd,
			Payload: map[string]string{
				"proxy_name":        input.Config.ProxyName,
				"proxy_directory":   input.Config.ProxyDirectory,
				"environment_group": input.Config.EnvironmentGroup,
				"environment_type":  input.Config.EnvironmentType,
			},
		}).Get(ctx, &created)
		if err != nil {
			logger.Error("Failed to create GitHub deployment", "error", err)
		} else {
			result.DeploymentID = created.DeploymentID
			updateGitHubStatus(ctx, githubActivities, input, result.DeploymentID, "in_progress",
				fmt.Sprintf("Deploying to %s", result.Environment))
		}
	}

	for i, step := range deployapi.Steps {
		progress = Progress{CurrentStep: i, Running: true}
		logger.Info("Running deployment step", "step", step.Name)

		var err error
		switch step.Name {
		case deployapi.StepValidate:
			err = workflow.ExecuteActivity(ctx, deployActivities.ValidateProxyConfig, input.Config).Get(ctx, nil)
		case deployapi.StepDeploy:
			var resp *deployapi.Response
			err = workflow.ExecuteActivity(ctx, deployActivities.DeployProxy, input.Config).Get(ctx, &resp)
			if err == nil && resp != nil {
				result.Message = resp.Message
			}
		case deployapi.StepVerify:
			if result.DeploymentID != 0 {
				err = workflow.ExecuteActivity(ctx, githubActivities.UpdateGitHubDeploymentStatus, activities.UpdateDeploymentStatusInput{
					Repository:   input.Repository,
					DeploymentID: result.DeploymentID,
					State:        "success",
					Description:  fmt.Sprintf("Successfully deployed to %s environment", result.Environment),
				}).Get(ctx, nil)
			} else {
				err = workflow.Sleep(ctx, step.SimulatedDelay)
			}
		default:
			err = workflow.Sleep(ctx, step.SimulatedDelay)
		}

		if err != nil {
			logger.Error("Deployment step failed", "step", step.Name, "error", err)
			if result.DeploymentID != 0 {
				updateGitHubStatus(ctx, githubActivities, input, result.DeploymentID, "failure",
					fmt.Sprintf("Deployment failed at step %s", step.Label))
			}
			return nil, err
		}

		progress = Progress{CurrentStep: i + 1}
		result.StepsCompleted = i + 1
	}

	result.FinalStatus = "success"
	endTime := workflow.Now(ctx)
	result.CompletedAt = endTime
	result.TotalDuration = endTime.Sub(startTime).String()

	logger.Info("Deployment workflow completed",
		"proxy", result.ProxyName,
		"deployment_id", result.DeploymentID,
		"final_status", result.FinalStatus,
		"duration", result.TotalDuration)

	return result, nil
}

// updateGitHubStatus posts a deployment status, logging instead of failing
func updateGitHubStatus(ctx workflow.Context, a *activities.GitHubActivities, input DeploymentWorkflowInput, deploymentID int64, state, description string) {
	err := workflow.ExecuteActivity(ctx, a.UpdateGitHubDeploymentStatus, activities.UpdateDeploymentStatusInput{
		Repository:   input.Repository,
		DeploymentID: deploymentID,
		State:        state,
		Description:  description,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("Failed to update GitHub deployment status", "state", state, "error", err)
	}
}
