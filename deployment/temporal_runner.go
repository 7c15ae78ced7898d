package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
	"github.com/imranansari/apigee-deploy-wf/workflows"
)

// WorkflowClient is the part of the Temporal client used by TemporalRunner
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// TemporalRunnerOptions configures a TemporalRunner
type TemporalRunnerOptions struct {
	TaskQueue    string
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       zerolog.Logger

	// RecordGitHubDeployments asks the worker to mirror the run as a GitHub Deployment
	RecordGitHubDeployments bool
}

// TemporalRunner executes the deployment as ApigeeDeploymentWorkflow on a worker
// and replays the workflow's progress as step transitions
type TemporalRunner struct {
	client WorkflowClient
	opts   TemporalRunnerOptions
}

// NewTemporalRunner creates a runner backed by a Temporal worker
func NewTemporalRunner(c WorkflowClient, opts TemporalRunnerOptions) *TemporalRunner {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &TemporalRunner{client: c, opts: opts}
}

func (r *TemporalRunner) Run(ctx context.Context, req Request, progress Progress) error {
	cfg := req.Config
	cfg.GitHubToken = ""

	input := workflows.DeploymentWorkflowInput{
		Config:                 cfg,
		Repository:             req.Repository,
		Branch:                 req.Branch,
		RecordGitHubDeployment: r.opts.RecordGitHubDeployments && req.Repository != "" && req.Branch != "",
	}

	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("apigee-deploy-%s-%s", cfg.ProxyName, uuid.NewString()),
		TaskQueue:                r.opts.TaskQueue,
		WorkflowExecutionTimeout: workflows.WorkflowTimeout,
	}, workflows.ApigeeDeploymentWorkflow, input)
	if err != nil {
		return fmt.Errorf("failed to start deployment workflow: %w", err)
	}

	logger := r.opts.Logger.With().
		Str("workflow_id", run.GetID()).
		Str("run_id", run.GetRunID()).
		Logger()
	logger.Info().Str("proxy", cfg.ProxyName).Msg("Deployment workflow started")

	done := make(chan error, 1)
	go func() {
		var result workflows.DeploymentWorkflowResult
		done <- run.Get(ctx, &result)
	}()

	tracker := &stepTracker{progress: progress}
	ticker := r.opts.Clock.Ticker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				// catch up to the step that failed so it shows in the log
				r.poll(ctx, run, tracker, logger)
				return workflowFailure(err)
			}
			tracker.advance(2 * len(deployapi.Steps))
			return nil
		case <-ticker.C:
			r.poll(ctx, run, tracker, logger)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *TemporalRunner) poll(ctx context.Context, run client.WorkflowRun, tracker *stepTracker, logger zerolog.Logger) {
	value, err := r.client.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), workflows.ProgressQuery)
	if err != nil {
		logger.Debug().Err(err).Msg("Progress query failed")
		return
	}

	var p workflows.Progress
	if err := value.Get(&p); err != nil {
		logger.Debug().Err(err).Msg("Progress query returned an unreadable value")
		return
	}
	tracker.advance(p.Transitions())
}

// workflowFailure reduces a workflow error to the message of its root application error
func workflowFailure(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return errors.New(appErr.Message())
	}
	return err
}

// stepTracker emits start/complete pairs in order, never repeating one
type stepTracker struct {
	progress Progress
	emitted  int
}

func (t *stepTracker) advance(transitions int) {
	for t.emitted < transitions {
		index := t.emitted / 2
		if t.emitted%2 == 0 {
			t.progress.StepStarted(index)
		} else {
			t.progress.StepCompleted(index)
		}
		t.emitted++
	}
}
