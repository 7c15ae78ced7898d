package deployment

import (
	"fmt"
	"time"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

// Event is a state transition of a session
type Event interface {
	apply(s *Snapshot, now time.Time)
}

// Apply returns the state that results from ev. s is not modified.
func Apply(s Snapshot, ev Event, now time.Time) Snapshot {
	next := s.clone()
	ev.apply(&next, now)
	return next
}

func (s *Snapshot) log(now time.Time, severity Severity, message string) {
	s.Deployment.Logs = append(s.Deployment.Logs, LogEntry{
		Message:   message,
		Severity:  severity,
		Timestamp: now,
	})
}

// LogAppended appends a free-form log entry
type LogAppended struct {
	Message  string
	Severity Severity
}

func (e LogAppended) apply(s *Snapshot, now time.Time) {
	s.log(now, e.Severity, e.Message)
}

// CredentialsMissing records that validation was attempted without a username or token
type CredentialsMissing struct{}

func (CredentialsMissing) apply(s *Snapshot, _ time.Time) {
	s.GitHub.Error = "Username and token are required"
}

// ValidationStarted marks GitHub credentials as being checked
type ValidationStarted struct {
	Username string
}

func (e ValidationStarted) apply(s *Snapshot, now time.Time) {
	s.Form.GitHubUsername = e.Username
	s.GitHub.IsValidating = true
	s.GitHub.Error = ""
	s.resumeStatus = s.Deployment.Status
	s.Deployment.Status = StatusValidating
	s.log(now, SeverityInfo, "Validating GitHub credentials...")
}

// Authenticated records a successful credential check
type Authenticated struct {
	Generation int
	User       githubClient.User
	Token      string
}

func (e Authenticated) apply(s *Snapshot, now time.Time) {
	if e.Generation != s.authGeneration {
		return
	}
	s.GitHub = GithubState{
		IsAuthenticated: true,
		Username:        e.User.Login,
		Token:           e.Token,
		AvatarURL:       e.User.AvatarURL,
	}
	s.Repos = RepoState{}
	s.authGeneration++
	s.endValidation()
	s.log(now, SeveritySuccess, "GitHub authentication successful")
}

// AuthenticationFailed records a rejected credential check
type AuthenticationFailed struct {
	Generation int
}

func (e AuthenticationFailed) apply(s *Snapshot, now time.Time) {
	if e.Generation != s.authGeneration {
		return
	}
	s.GitHub = GithubState{Error: "Failed to validate GitHub credentials"}
	s.endValidation()
	s.log(now, SeverityError, "GitHub authentication failed")
}

func (s *Snapshot) endValidation() {
	if s.Deployment.Status == StatusValidating {
		s.Deployment.Status = s.resumeStatus
		if s.Deployment.Status == "" {
			s.Deployment.Status = StatusIdle
		}
	}
	s.resumeStatus = ""
}

// Disconnected drops the GitHub identity and everything fetched with it
type Disconnected struct{}

func (Disconnected) apply(s *Snapshot, now time.Time) {
	s.GitHub = GithubState{}
	s.Repos = RepoState{}
	s.Form.Repository = ""
	s.Form.Branch = ""
	s.Form.CreatePR = false
	s.authGeneration++
	// the pending validation result is now stale and will never end it
	s.endValidation()
	s.log(now, SeverityInfo, "Disconnected from GitHub")
}

// RepositoriesRequested marks the repository list as loading
type RepositoriesRequested struct {
	Generation int
}

func (e RepositoriesRequested) apply(s *Snapshot, _ time.Time) {
	if e.Generation != s.authGeneration {
		return
	}
	s.Repos.Loading = true
	s.Repos.Error = ""
}

// RepositoriesLoaded stores the fetched repository list
type RepositoriesLoaded struct {
	Generation   int
	Repositories []githubClient.Repo
}

func (e RepositoriesLoaded) apply(s *Snapshot, now time.Time) {
	if e.Generation != s.authGeneration {
		return
	}
	s.Repos.Repositories = append([]githubClient.Repo{}, e.Repositories...)
	s.Repos.Loading = false
	s.Repos.Error = ""
	s.log(now, SeverityInfo, fmt.Sprintf("Loaded %d repositories", len(e.Repositories)))
}

// RepositoriesFailed records a failed repository fetch
type RepositoriesFailed struct {
	Generation int
}

func (e RepositoriesFailed) apply(s *Snapshot, now time.Time) {
	if e.Generation != s.authGeneration {
		return
	}
	s.Repos.Repositories = []githubClient.Repo{}
	s.Repos.Loading = false
	s.Repos.Error = "Failed to fetch repositories"
	s.log(now, SeverityError, "Failed to fetch repositories")
}

// RepositorySelected picks a repository and starts loading its branches
type RepositorySelected struct {
	FullName string
}

func (e RepositorySelected) apply(s *Snapshot, _ time.Time) {
	s.Repos.Selected = e.FullName
	s.Repos.Branches = nil
	s.Repos.BranchesLoading = e.FullName != ""
	s.Repos.BranchesError = ""
	s.Repos.SelectedBranch = ""
	s.Form.Repository = e.FullName
	s.Form.Branch = ""
}

// BranchesLoaded stores the branches of the selected repository
type BranchesLoaded struct {
	Generation int
	FullName   string
	Branches   []githubClient.Branch
}

func (e BranchesLoaded) apply(s *Snapshot, _ time.Time) {
	if e.Generation != s.authGeneration || e.FullName != s.Repos.Selected {
		return
	}
	s.Repos.Branches = append([]githubClient.Branch{}, e.Branches...)
	s.Repos.BranchesLoading = false
	s.Repos.BranchesError = ""
}

// BranchesFailed records a failed branch fetch
type BranchesFailed struct {
	Generation int
	FullName   string
}

func (e BranchesFailed) apply(s *Snapshot, now time.Time) {
	if e.Generation != s.authGeneration || e.FullName != s.Repos.Selected {
		return
	}
	s.Repos.Branches = []githubClient.Branch{}
	s.Repos.BranchesLoading = false
	s.Repos.BranchesError = "Failed to fetch branches"
	s.log(now, SeverityError, "Failed to fetch branches")
}

// BranchSelected picks a branch of the selected repository
type BranchSelected struct {
	Name string
}

func (e BranchSelected) apply(s *Snapshot, _ time.Time) {
	s.Repos.SelectedBranch = e.Name
	s.Form.Branch = e.Name
}

// DeploymentRejected logs why a submit did not start a deployment
type DeploymentRejected struct {
	Reason string
}

func (e DeploymentRejected) apply(s *Snapshot, now time.Time) {
	s.log(now, SeverityError, e.Reason)
}

// DeploymentStarted enters the deploying state
type DeploymentStarted struct {
	Form FormInput
}

func (e DeploymentStarted) apply(s *Snapshot, _ time.Time) {
	form := e.Form
	form.GitHubToken = ""
	s.Form = form
	s.Deployment.Status = StatusDeploying
	s.Deployment.CurrentStep = 0
	s.Deployment.Error = ""
	s.Deployment.PullRequest = nil
}

// StepStarted logs the start of a deployment step
type StepStarted struct {
	Index int
}

func (e StepStarted) apply(s *Snapshot, now time.Time) {
	if e.Index < 0 || e.Index >= len(deployapi.Steps) {
		return
	}
	s.log(now, SeverityInfo, deployapi.Steps[e.Index].Message)
}

// StepCompleted advances the progress indicator past a step
type StepCompleted struct {
	Index int
}

func (e StepCompleted) apply(s *Snapshot, _ time.Time) {
	s.Deployment.CurrentStep = e.Index + 1
}

// DeploymentSucceeded ends a deployment successfully
type DeploymentSucceeded struct{}

func (DeploymentSucceeded) apply(s *Snapshot, now time.Time) {
	s.log(now, SeveritySuccess, "Deployment completed successfully!")
	s.Deployment.Status = StatusSuccess
}

// DeploymentFailed ends a deployment with an error
type DeploymentFailed struct {
	Message string
}

func (e DeploymentFailed) apply(s *Snapshot, now time.Time) {
	s.Deployment.Status = StatusError
	s.Deployment.Error = e.Message
	s.log(now, SeverityError, "Deployment failed: "+e.Message)
}

// PullRequestOpened records the pull request created after a deployment
type PullRequestOpened struct {
	PR githubClient.PRDetails
}

func (e PullRequestOpened) apply(s *Snapshot, now time.Time) {
	pr := e.PR
	s.Deployment.PullRequest = &pr
	s.log(now, SeveritySuccess, fmt.Sprintf("Pull request #%d opened: %s", pr.Number, pr.HTMLURL))
}

// Reset returns the session to its initial state
type Reset struct{}

func (Reset) apply(s *Snapshot, _ time.Time) {
	generation, logEpoch := s.authGeneration, s.Deployment.LogEpoch
	*s = NewSnapshot()
	s.authGeneration = generation + 1
	s.Deployment.LogEpoch = logEpoch + 1
}
