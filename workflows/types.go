package workflows

import (
	"time"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

// ProgressQuery is the query type answered with a Progress value
const ProgressQuery = "progress"

// DeploymentWorkflowInput represents the input for the Apigee deployment workflow.
// It never carries a GitHub token.
type DeploymentWorkflowInput struct {
	Config deployapi.Config `json:"config"`

	// Source of the proxy, used to record a GitHub Deployment
	Repository             string `json:"repository,omitempty"`
	Branch                 string `json:"branch,omitempty"`
	RecordGitHubDeployment bool   `json:"record_github_deployment"`
}

// DeploymentWorkflowResult represents the result of the deployment workflow
type DeploymentWorkflowResult struct {
	ProxyName      string    `json:"proxy_name"`
	Environment    string    `json:"environment"`
	DeploymentID   int64     `json:"deployment_id,omitempty"`
	FinalStatus    string    `json:"final_status"`
	Message        string    `json:"message,omitempty"`
	StepsCompleted int       `json:"steps_completed"`
	CompletedAt    time.Time `json:"completed_at"`
	TotalDuration  string    `json:"total_duration"`
}

// Progress reports how far the workflow got
type Progress struct {
	CurrentStep int  `json:"current_step"`
	Running     bool `json:"running"`
}

// Transitions counts step starts and completions so far
func (p Progress) Transitions() int {
	n := 2 * p.CurrentStep
	if p.Running {
		n++
	}
	return n
}

// EnvironmentName is the GitHub environment an Apigee target maps to
func EnvironmentName(cfg deployapi.Config) string {
	return "apigee-" + cfg.EnvironmentGroup + "-" + cfg.EnvironmentType
}
