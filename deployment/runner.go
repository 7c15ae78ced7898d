package deployment

import (
	"context"
	"errors"
	"time"

	"github.com/facebookgo/clock"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

// Progress receives step transitions from a Runner, in order
type Progress interface {
	StepStarted(index int)
	StepCompleted(index int)
}

// Request is what a Runner deploys
type Request struct {
	Config     deployapi.Config
	Repository string
	Branch     string
}

// Runner executes the steps in deployapi.Steps
type Runner interface {
	Run(ctx context.Context, req Request, progress Progress) error
}

// SimulatedRunner waits a fixed delay per step
type SimulatedRunner struct {
	clock clock.Clock
	delay time.Duration
}

// NewSimulatedRunner creates a runner that only waits
func NewSimulatedRunner(clk clock.Clock, delay time.Duration) *SimulatedRunner {
	return &SimulatedRunner{clock: clk, delay: delay}
}

func (r *SimulatedRunner) Run(ctx context.Context, _ Request, progress Progress) error {
	for i := range deployapi.Steps {
		progress.StepStarted(i)
		if err := wait(ctx, r.clock, r.delay); err != nil {
			return err
		}
		progress.StepCompleted(i)
	}
	return nil
}

// APIRunner forwards the validate and deploy steps to the deployment backend
// and waits a fixed delay for the others
type APIRunner struct {
	client *deployapi.Client
	clock  clock.Clock
	delay  time.Duration
}

// NewAPIRunner creates a runner backed by the deployment API
func NewAPIRunner(client *deployapi.Client, clk clock.Clock, delay time.Duration) *APIRunner {
	return &APIRunner{client: client, clock: clk, delay: delay}
}

func (r *APIRunner) Run(ctx context.Context, req Request, progress Progress) error {
	for i, step := range deployapi.Steps {
		progress.StepStarted(i)

		var err error
		switch step.Name {
		case deployapi.StepValidate:
			err = checkResponse(r.client.Validate(ctx, req.Config))
		case deployapi.StepDeploy:
			err = checkResponse(r.client.Deploy(ctx, req.Config))
		default:
			err = wait(ctx, r.clock, r.delay)
		}
		if err != nil {
			return err
		}

		progress.StepCompleted(i)
	}
	return nil
}

// checkResponse treats a 2xx response with success=false as a failure
func checkResponse(resp *deployapi.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Message != "" {
			return errors.New(resp.Message)
		}
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		return errors.New("deployment backend reported failure")
	}
	return nil
}

func wait(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
