package deployapi

import (
	"context"
	"time"
)

// Step names
const (
	StepValidate     = "validate"
	StepAuthenticate = "authenticate"
	StepBuild        = "build"
	StepDeploy       = "deploy"
	StepVerify       = "verify"
)

// Step is one stage of a proxy deployment
type Step struct {
	Name    string
	Label   string
	Message string

	// SimulatedDelay is the fixed wait used when the step has no real backend
	SimulatedDelay time.Duration
}

// Steps are the ordered stages of every deployment
var Steps = []Step{
	{Name: StepValidate, Label: "Validate Inputs", Message: "Validating deployment configuration...", SimulatedDelay: 1000 * time.Millisecond},
	{Name: StepAuthenticate, Label: "Authentication", Message: "Authenticating with Apigee...", SimulatedDelay: 1500 * time.Millisecond},
	{Name: StepBuild, Label: "Build & Upload", Message: "Building and uploading proxy bundle...", SimulatedDelay: 2000 * time.Millisecond},
	{Name: StepDeploy, Label: "Deploy", Message: "Deploying to target environment...", SimulatedDelay: 1500 * time.Millisecond},
	{Name: StepVerify, Label: "Verify", Message: "Verifying deployment...", SimulatedDelay: 1000 * time.Millisecond},
}

// Simulate waits through Steps and always succeeds unless ctx is cancelled
func (c *Client) Simulate(ctx context.Context, cfg Config) (*Response, error) {
	for _, step := range Steps {
		c.logger.Debug().Str("proxy", cfg.ProxyName).Str("step", step.Name).Msg("Simulating deployment step")

		select {
		case <-c.clock.After(step.SimulatedDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Response{
		Success: true,
		Message: "Deployment completed successfully",
	}, nil
}
