package deployment

import (
	"time"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

// Status is the state of the deployment workflow
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusDeploying  Status = "deploying"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Severity tags a log entry for rendering
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// LogEntry is one line of the deployment log
type LogEntry struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// DeploymentState tracks the progress of a deployment
type DeploymentState struct {
	Status      Status     `json:"status"`
	CurrentStep int        `json:"currentStep"`
	Logs        []LogEntry `json:"logs"`
	Error       string     `json:"error,omitempty"`

	// LogEpoch changes whenever Logs is cleared
	LogEpoch int `json:"logEpoch"`

	PullRequest *githubClient.PRDetails `json:"pullRequest,omitempty"`
}

// GithubState tracks GitHub authentication. Token is held in memory only.
type GithubState struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Username        string `json:"username"`
	Token           string `json:"-"`
	AvatarURL       string `json:"avatarUrl"`
	IsValidating    bool   `json:"isValidating"`
	Error           string `json:"error"`
}

// RepoState tracks the repository and branch pickers
type RepoState struct {
	Repositories []githubClient.Repo `json:"repositories"`
	Loading      bool                `json:"loading"`
	Error        string              `json:"error,omitempty"`
	Selected     string              `json:"selected,omitempty"`

	Branches        []githubClient.Branch `json:"branches"`
	BranchesLoading bool                  `json:"branchesLoading"`
	BranchesError   string                `json:"branchesError,omitempty"`
	SelectedBranch  string                `json:"selectedBranch,omitempty"`
}

// Snapshot is the complete state of one deployment form session
type Snapshot struct {
	Deployment DeploymentState `json:"deployment"`
	GitHub     GithubState     `json:"github"`
	Repos      RepoState       `json:"repos"`
	Form       FormInput       `json:"form"`

	// status to return to once credential validation ends
	resumeStatus Status
	// bumped whenever the authenticated identity changes, stale fetch results are dropped
	authGeneration int
}

// NewSnapshot returns the initial state
func NewSnapshot() Snapshot {
	return Snapshot{
		Deployment: DeploymentState{
			Status: StatusIdle,
			Logs:   []LogEntry{},
		},
		Form: DefaultForm(),
	}
}

// Redacted returns a copy safe to hand to clients
func (s Snapshot) Redacted() Snapshot {
	out := s.clone()
	out.GitHub.Token = ""
	out.Form.GitHubToken = ""
	return out
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Deployment.Logs = append([]LogEntry{}, s.Deployment.Logs...)
	if s.Repos.Repositories != nil {
		out.Repos.Repositories = append([]githubClient.Repo(nil), s.Repos.Repositories...)
	}
	if s.Repos.Branches != nil {
		out.Repos.Branches = append([]githubClient.Branch(nil), s.Repos.Branches...)
	}
	if s.Deployment.PullRequest != nil {
		pr := *s.Deployment.PullRequest
		out.Deployment.PullRequest = &pr
	}
	return out
}

// Repository returns the repository with the given full name from the loaded list
func (s Snapshot) Repository(fullName string) (githubClient.Repo, bool) {
	for _, r := range s.Repos.Repositories {
		if r.FullName == fullName {
			return r, true
		}
	}
	return githubClient.Repo{}, false
}
