package deployment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

var (
	ErrNotAuthenticated     = errors.New("GitHub authentication required")
	ErrCredentialsMissing   = errors.New("username and token are required")
	ErrDeploymentInProgress = errors.New("deployment already in progress")
	ErrValidationInProgress = errors.New("GitHub validation already in progress")
	ErrGitHubDisabled       = errors.New("GitHub integration is disabled")
	ErrUnknownBranch        = errors.New("branch is not in the selected repository")
)

// GitHubService is the subset of the GitHub client used by a session
type GitHubService interface {
	ValidateCredentials(ctx context.Context, username, token string) (*githubClient.User, error)
	ListRepositories(ctx context.Context, token string) ([]githubClient.Repo, error)
	ListBranches(ctx context.Context, token, fullName string) ([]githubClient.Branch, error)
	CreatePullRequest(ctx context.Context, token, fullName string, opts githubClient.PROptions) (*githubClient.PRDetails, error)
	GetPRStatus(ctx context.Context, token, fullName string, number int) (*githubClient.PRDetails, error)
}

// Options configures a Session
type Options struct {
	// GitHub is nil when the GitHub capability is switched off
	GitHub GitHubService
	Runner Runner
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Session owns the state of one deployment form. All state changes go
// through dispatch; network calls and waits run without holding the lock.
type Session struct {
	id     string
	github GitHubService
	runner Runner
	clock  clock.Clock
	logger zerolog.Logger

	mu          sync.Mutex
	state       Snapshot
	subscribers map[chan Snapshot]struct{}

	running sync.WaitGroup
}

// NewSession creates a session in the initial state
func NewSession(id string, opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Session{
		id:          id,
		github:      opts.GitHub,
		runner:      opts.Runner,
		clock:       clk,
		logger:      opts.Logger,
		state:       NewSnapshot(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// GitHubEnabled reports whether the GitHub capability is available
func (s *Session) GitHubEnabled() bool {
	return s.github != nil
}

// Snapshot returns the current state without secrets
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Redacted()
}

// Subscribe returns a channel that receives the latest state after every change.
// Intermediate states may be skipped by a slow reader; the last one is always delivered.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) dispatch(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(events...)
}

func (s *Session) applyLocked(events ...Event) {
	now := s.clock.Now()
	for _, ev := range events {
		s.state = Apply(s.state, ev, now)
	}

	snapshot := s.state.Redacted()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// replace the unread state with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// ValidateGitHub checks the credentials and, once authenticated, loads the repository list
func (s *Session) ValidateGitHub(ctx context.Context, username, token string) error {
	if s.github == nil {
		return ErrGitHubDisabled
	}

	username = strings.TrimSpace(username)
	token = strings.TrimSpace(token)
	if username == "" || token == "" {
		s.dispatch(CredentialsMissing{})
		return ErrCredentialsMissing
	}

	s.mu.Lock()
	switch {
	case s.state.Deployment.Status == StatusDeploying:
		s.mu.Unlock()
		return ErrDeploymentInProgress
	case s.state.GitHub.IsValidating:
		s.mu.Unlock()
		return ErrValidationInProgress
	}
	generation := s.state.authGeneration
	s.applyLocked(ValidationStarted{Username: username})
	s.mu.Unlock()

	user, err := s.github.ValidateCredentials(ctx, username, token)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("GitHub authentication failed")
		s.dispatch(AuthenticationFailed{Generation: generation})
		return err
	}

	s.dispatch(Authenticated{Generation: generation, User: *user, Token: token})
	s.logger.Info().Str("login", user.Login).Msg("GitHub authentication successful")

	_ = s.RefreshRepositories(ctx)
	return nil
}

// Disconnect forgets the GitHub identity, its token and the repository selection.
// It is refused while deploying.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Deployment.Status == StatusDeploying {
		return ErrDeploymentInProgress
	}
	s.applyLocked(Disconnected{})
	return nil
}

// RefreshRepositories reloads the repository list of the authenticated user
func (s *Session) RefreshRepositories(ctx context.Context) error {
	if s.github == nil {
		return ErrGitHubDisabled
	}

	s.mu.Lock()
	if !s.state.GitHub.IsAuthenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	generation := s.state.authGeneration
	token := s.state.GitHub.Token
	s.applyLocked(RepositoriesRequested{Generation: generation})
	s.mu.Unlock()

	repos, err := s.github.ListRepositories(ctx, token)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch repositories")
		s.dispatch(RepositoriesFailed{Generation: generation})
		return err
	}

	s.dispatch(RepositoriesLoaded{Generation: generation, Repositories: repos})
	return nil
}

// SelectRepository picks a repository and loads its branches. An empty name clears the selection.
func (s *Session) SelectRepository(ctx context.Context, fullName string) error {
	if s.github == nil {
		return ErrGitHubDisabled
	}
	if fullName != "" {
		if _, _, err := githubClient.SplitFullName(fullName); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if !s.state.GitHub.IsAuthenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	generation := s.state.authGeneration
	token := s.state.GitHub.Token
	s.applyLocked(RepositorySelected{FullName: fullName})
	s.mu.Unlock()

	if fullName == "" {
		return nil
	}

	branches, err := s.github.ListBranches(ctx, token, fullName)
	if err != nil {
		s.logger.Error().Err(err).Str("repository", fullName).Msg("Failed to fetch branches")
		s.dispatch(BranchesFailed{Generation: generation, FullName: fullName})
		return err
	}

	s.dispatch(BranchesLoaded{Generation: generation, FullName: fullName, Branches: branches})
	return nil
}

// SelectBranch picks a branch of the selected repository
func (s *Session) SelectBranch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Repos.Selected == "" {
		return fmt.Errorf("no repository selected: %w", ErrUnknownBranch)
	}
	if name != "" && len(s.state.Repos.Branches) > 0 {
		found := false
		for _, b := range s.state.Repos.Branches {
			if b.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q: %w", name, ErrUnknownBranch)
		}
	}

	s.applyLocked(BranchSelected{Name: name})
	return nil
}

// PullRequestStatus looks up a pull request with the session's credentials
func (s *Session) PullRequestStatus(ctx context.Context, fullName string, number int) (*githubClient.PRDetails, error) {
	if s.github == nil {
		return nil, ErrGitHubDisabled
	}

	s.mu.Lock()
	authenticated, token := s.state.GitHub.IsAuthenticated, s.state.GitHub.Token
	s.mu.Unlock()
	if !authenticated {
		return nil, ErrNotAuthenticated
	}

	return s.github.GetPRStatus(ctx, token, fullName, number)
}

// Deploy runs a deployment to completion
func (s *Session) Deploy(ctx context.Context, form FormInput) error {
	req, form, err := s.begin(form)
	if err != nil {
		return err
	}
	return s.run(ctx, req, form)
}

// Start begins a deployment and runs it in the background. Rejections are
// returned synchronously; the outcome is only visible in the session state.
func (s *Session) Start(ctx context.Context, form FormInput) error {
	req, form, err := s.begin(form)
	if err != nil {
		return err
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		_ = s.run(ctx, req, form)
	}()
	return nil
}

// Wait blocks until background deployments have finished
func (s *Session) Wait() {
	s.running.Wait()
}

// Reset returns the session to its initial state. It is refused while deploying.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Deployment.Status == StatusDeploying {
		return ErrDeploymentInProgress
	}
	s.applyLocked(Reset{})
	return nil
}

func (s *Session) begin(form FormInput) (Request, FormInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Deployment.Status {
	case StatusDeploying:
		return Request{}, form, ErrDeploymentInProgress
	case StatusValidating:
		return Request{}, form, ErrValidationInProgress
	}

	if form.Repository == "" {
		form.Repository = s.state.Repos.Selected
	}
	if form.Branch == "" {
		form.Branch = s.state.Repos.SelectedBranch
	}
	if form.GitHubUsername == "" {
		form.GitHubUsername = s.state.GitHub.Username
	}

	if err := form.Validate(s.github != nil); err != nil {
		return Request{}, form, err
	}

	if s.github != nil && !s.state.GitHub.IsAuthenticated {
		s.applyLocked(DeploymentRejected{Reason: "GitHub authentication required"})
		return Request{}, form, ErrNotAuthenticated
	}

	s.applyLocked(DeploymentStarted{Form: form})
	s.logger.Info().
		Str("proxy", form.ProxyName).
		Str("environment_group", form.EnvironmentGroup).
		Str("environment_type", form.EnvironmentType).
		Msg("Deployment started")

	return Request{
		Config:     form.Config(s.state.GitHub.Token),
		Repository: form.Repository,
		Branch:     form.Branch,
	}, form, nil
}

func (s *Session) run(ctx context.Context, req Request, form FormInput) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deployment aborted: %v", r)
			s.logger.Error().Interface("panic", r).Msg("Deployment runner panicked")
			s.dispatch(DeploymentFailed{Message: err.Error()})
		}
	}()

	if err := s.runner.Run(ctx, req, sessionProgress{s}); err != nil {
		s.logger.Error().Err(err).Str("proxy", req.Config.ProxyName).Msg("Deployment failed")
		s.dispatch(DeploymentFailed{Message: err.Error()})
		return fmt.Errorf("deployment failed: %w", err)
	}

	s.dispatch(DeploymentSucceeded{})
	s.logger.Info().Str("proxy", req.Config.ProxyName).Msg("Deployment completed")

	if form.CreatePR && s.github != nil {
		s.openPullRequest(ctx, form)
	}
	return nil
}

func (s *Session) openPullRequest(ctx context.Context, form FormInput) {
	s.mu.Lock()
	token := s.state.GitHub.Token
	base := "main"
	if repo, ok := s.state.Repository(form.Repository); ok && repo.DefaultBranch != "" {
		base = repo.DefaultBranch
	}
	if base == form.Branch {
		s.applyLocked(LogAppended{
			Message:  fmt.Sprintf("Pull request skipped: %s is the default branch", form.Branch),
			Severity: SeverityInfo,
		})
		s.mu.Unlock()
		return
	}
	s.applyLocked(LogAppended{Message: "Opening pull request...", Severity: SeverityInfo})
	s.mu.Unlock()

	description := form.CommitMessage
	if description == "" {
		description = fmt.Sprintf("Deploys Apigee proxy %s (%s) to %s/%s.",
			form.ProxyName, form.ProxyDirectory, form.EnvironmentGroup, form.EnvironmentType)
	}

	pr, err := s.github.CreatePullRequest(ctx, token, form.Repository, githubClient.PROptions{
		Title:               fmt.Sprintf("Deploy %s to %s/%s", form.ProxyName, form.EnvironmentGroup, form.EnvironmentType),
		Description:         description,
		Base:                base,
		Head:                form.Branch,
		MaintainerCanModify: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("repository", form.Repository).Msg("Failed to create pull request")
		s.dispatch(LogAppended{Message: "Failed to create pull request", Severity: SeverityError})
		return
	}

	s.dispatch(PullRequestOpened{PR: *pr})
}

// sessionProgress feeds runner step transitions into the session
type sessionProgress struct {
	s *Session
}

func (p sessionProgress) StepStarted(index int) {
	p.s.dispatch(StepStarted{Index: index})
}

func (p sessionProgress) StepCompleted(index int) {
	p.s.dispatch(StepCompleted{Index: index})
}
