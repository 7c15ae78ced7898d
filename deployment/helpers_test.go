package deployment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

type fakeGitHub struct {
	mu    sync.Mutex
	calls []string

	user        *githubClient.User
	validateErr error
	repos       []githubClient.Repo
	reposErr    error
	branches    map[string][]githubClient.Branch
	branchesErr error
	pr          *githubClient.PRDetails
	prErr       error
	prOpts      githubClient.PROptions

	validateHold *hold
	reposHold    *hold
}

// hold parks a fake call until the test releases it
type hold struct {
	entered chan struct{}
	release chan struct{}
}

func newHold() *hold {
	return &hold{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (h *hold) wait() {
	if h == nil {
		return
	}
	h.entered <- struct{}{}
	<-h.release
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		user: &githubClient.User{Login: "octocat", AvatarURL: "https://avatars.example/octocat"},
		repos: []githubClient.Repo{
			{FullName: "octocat/proxies", Name: "proxies", DefaultBranch: "main"},
			{FullName: "octocat/old", Name: "old", DefaultBranch: "master"},
		},
		branches: map[string][]githubClient.Branch{
			"octocat/proxies": {{Name: "main"}, {Name: "feature/orders"}},
		},
		pr: &githubClient.PRDetails{Number: 7, HTMLURL: "https://github.example/octocat/proxies/pull/7", State: "open"},
	}
}

func (f *fakeGitHub) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGitHub) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGitHub) ValidateCredentials(_ context.Context, username, token string) (*githubClient.User, error) {
	f.record("validate:" + username)
	f.validateHold.wait()
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.user, nil
}

func (f *fakeGitHub) ListRepositories(_ context.Context, token string) ([]githubClient.Repo, error) {
	f.record("repos:" + token)
	f.reposHold.wait()
	if f.reposErr != nil {
		return nil, f.reposErr
	}
	return f.repos, nil
}

func (f *fakeGitHub) ListBranches(_ context.Context, token, fullName string) ([]githubClient.Branch, error) {
	f.record("branches:" + fullName)
	if f.branchesErr != nil {
		return nil, f.branchesErr
	}
	return f.branches[fullName], nil
}

func (f *fakeGitHub) CreatePullRequest(_ context.Context, token, fullName string, opts githubClient.PROptions) (*githubClient.PRDetails, error) {
	f.record("pr:" + fullName)
	f.mu.Lock()
	f.prOpts = opts
	f.mu.Unlock()
	if f.prErr != nil {
		return nil, f.prErr
	}
	return f.pr, nil
}

func (f *fakeGitHub) GetPRStatus(_ context.Context, token, fullName string, number int) (*githubClient.PRDetails, error) {
	f.record(fmt.Sprintf("pr-status:%s#%d", fullName, number))
	return f.pr, f.prErr
}

// failingRunner completes steps until failAt and then returns err
type failingRunner struct {
	failAt int
	err    error
}

func (r failingRunner) Run(_ context.Context, _ Request, progress Progress) error {
	for i := 0; i < r.failAt; i++ {
		progress.StepStarted(i)
		progress.StepCompleted(i)
	}
	progress.StepStarted(r.failAt)
	return r.err
}

type panickingRunner struct{}

func (panickingRunner) Run(context.Context, Request, Progress) error {
	panic("runner exploded")
}

type recordingProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingProgress) StepStarted(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("start:%d", index))
}

func (p *recordingProgress) StepCompleted(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("done:%d", index))
}

func (p *recordingProgress) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

var errBoom = errors.New("boom")

func newTestSession(gh GitHubService, runner Runner, clk clock.Clock) *Session {
	if runner == nil {
		runner = NewSimulatedRunner(clk, 0)
	}
	return NewSession("test", Options{
		GitHub: gh,
		Runner: runner,
		Clock:  clk,
		Logger: zerolog.Nop(),
	})
}

func authenticatedSession(t *testing.T, gh *fakeGitHub, runner Runner, clk clock.Clock) *Session {
	t.Helper()
	s := newTestSession(gh, runner, clk)
	if err := s.ValidateGitHub(context.Background(), "octocat", "ghp_secret"); err != nil {
		t.Fatalf("ValidateGitHub() error = %v", err)
	}
	return s
}

func validForm() FormInput {
	form := DefaultForm()
	form.ProxyName = "orders-v1"
	return form
}

// advanceUntil moves the mock clock forward until done is closed
func advanceUntil(t *testing.T, mock *clock.Mock, done <-chan struct{}) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		select {
		case <-done:
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out advancing the mock clock")
		}
		mock.Add(100 * time.Millisecond)
	}
}

func messages(logs []LogEntry) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Message)
	}
	return out
}

func countSeverity(logs []LogEntry, severity Severity) int {
	n := 0
	for _, l := range logs {
		if l.Severity == severity {
			n++
		}
	}
	return n
}
