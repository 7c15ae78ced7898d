package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployment"
	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

type fakeGitHub struct {
	prOpts githubClient.PROptions
}

func (f *fakeGitHub) ValidateCredentials(_ context.Context, username, token string) (*githubClient.User, error) {
	if token != "ghp_valid" {
		return nil, fmt.Errorf("failed to validate credentials: %w", githubClient.ErrAuthentication)
	}
	return &githubClient.User{Login: username, Name: "The Octocat"}, nil
}

func (f *fakeGitHub) ListRepositories(context.Context, string) ([]githubClient.Repo, error) {
	return []githubClient.Repo{{
		FullName:      "octocat/proxies",
		DefaultBranch: "main",
		UpdatedAt:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func (f *fakeGitHub) ListBranches(context.Context, string, string) ([]githubClient.Branch, error) {
	return []githubClient.Branch{{Name: "main", Protected: true}, {Name: "feature/orders"}}, nil
}

func (f *fakeGitHub) CreatePullRequest(_ context.Context, _, _ string, opts githubClient.PROptions) (*githubClient.PRDetails, error) {
	f.prOpts = opts
	return &githubClient.PRDetails{Number: 7, HTMLURL: "https://github.example/octocat/proxies/pull/7"}, nil
}

func (f *fakeGitHub) GetPRStatus(_ context.Context, _, _ string, number int) (*githubClient.PRDetails, error) {
	return &githubClient.PRDetails{
		Number:  number,
		Title:   "Deploy orders-v1",
		State:   "open",
		HTMLURL: "https://github.example/octocat/proxies/pull/7",
		Base:    githubClient.Ref{Ref: "main"},
		Head:    githubClient.Ref{Ref: "feature/orders"},
	}, nil
}

func newTestApp(gh *fakeGitHub) *app {
	a := newApp()
	a.loadConfig = func() (*config.Config, error) {
		return &config.Config{
			App:    config.AppConfig{GitHubIntegration: true},
			Deploy: config.DeployConfig{Mode: config.ModeSimulate},
		}, nil
	}
	a.newGitHub = func(*config.Config) deployment.GitHubService { return gh }
	a.newRunner = func(*config.Config) (deployment.Runner, func(), error) {
		return deployment.NewSimulatedRunner(clock.NewMock(), 0), func() {}, nil
	}
	return a
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand(a)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func setCredentials(t *testing.T) {
	t.Setenv("GITHUB_USERNAME", "octocat")
	t.Setenv("GITHUB_TOKEN", "ghp_valid")
}

func TestWhoami(t *testing.T) {
	setCredentials(t)

	out, err := execute(t, newTestApp(&fakeGitHub{}), "whoami")

	require.NoError(t, err)
	require.Equal(t, "octocat (The Octocat)\n", out)
}

func TestCredentialSources(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("GITHUB_USERNAME", "")
		t.Setenv("GITHUB_TOKEN", "")

		_, err := execute(t, newTestApp(&fakeGitHub{}), "whoami")
		require.ErrorIs(t, err, deployment.ErrCredentialsMissing)
	})

	t.Run("token file", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("ghp_valid\n"), 0o600))

		out, err := execute(t, newTestApp(&fakeGitHub{}), "whoami", "--username=octocat", "--token-file="+tokenFile)
		require.NoError(t, err)
		require.Contains(t, out, "octocat")
	})

	t.Run("config file", func(t *testing.T) {
		t.Setenv("GITHUB_USERNAME", "")
		t.Setenv("GITHUB_TOKEN", "")
		cfgFile := filepath.Join(t.TempDir(), "apigee-deploy.yaml")
		require.NoError(t, os.WriteFile(cfgFile, []byte("github_username: hubot\ngithub_token: ghp_valid\n"), 0o600))

		out, err := execute(t, newTestApp(&fakeGitHub{}), "whoami", "--config="+cfgFile)
		require.NoError(t, err)
		require.Contains(t, out, "hubot")
	})

	t.Run("bad token", func(t *testing.T) {
		t.Setenv("GITHUB_USERNAME", "octocat")
		t.Setenv("GITHUB_TOKEN", "nope")

		_, err := execute(t, newTestApp(&fakeGitHub{}), "whoami")
		require.ErrorIs(t, err, githubClient.ErrAuthentication)
	})
}

func TestReposAndBranches(t *testing.T) {
	setCredentials(t)

	out, err := execute(t, newTestApp(&fakeGitHub{}), "repos")
	require.NoError(t, err)
	require.Contains(t, out, "REPOSITORY")
	require.Contains(t, out, "octocat/proxies")
	require.Contains(t, out, "2024-03-01")

	out, err = execute(t, newTestApp(&fakeGitHub{}), "branches", "octocat/proxies")
	require.NoError(t, err)
	require.Equal(t, "main (protected)\nfeature/orders\n", out)

	_, err = execute(t, newTestApp(&fakeGitHub{}), "branches")
	require.Error(t, err)
}

func TestPullRequests(t *testing.T) {
	setCredentials(t)
	gh := &fakeGitHub{}

	out, err := execute(t, newTestApp(gh), "pr", "create",
		"--repo=octocat/proxies", "--head=feature/orders", "--title=Deploy orders-v1", "--draft")
	require.NoError(t, err)
	require.Equal(t, "Pull request #7 opened: https://github.example/octocat/proxies/pull/7\n", out)
	require.Equal(t, githubClient.PROptions{
		Title:               "Deploy orders-v1",
		Base:                "main",
		Head:                "feature/orders",
		Draft:               true,
		MaintainerCanModify: true,
	}, gh.prOpts)

	out, err = execute(t, newTestApp(gh), "pr", "status", "7", "--repo=octocat/proxies")
	require.NoError(t, err)
	require.Contains(t, out, "#7 Deploy orders-v1 [open] main <- feature/orders")

	_, err = execute(t, newTestApp(gh), "pr", "status", "seven", "--repo=octocat/proxies")
	require.ErrorContains(t, err, "invalid pull request number")
}

func TestDeploy(t *testing.T) {
	setCredentials(t)

	out, err := execute(t, newTestApp(&fakeGitHub{}), "deploy", "--proxy=orders-v1", "--group=wpay", "--type=test")

	require.NoError(t, err)
	require.Contains(t, out, "GitHub authentication successful")
	require.Contains(t, out, "Validating deployment configuration...")
	require.Contains(t, out, "Verifying deployment...")
	require.Contains(t, out, "Deployment completed successfully!")
}

func TestDeployOpensPullRequest(t *testing.T) {
	setCredentials(t)
	gh := &fakeGitHub{}

	out, err := execute(t, newTestApp(gh), "deploy", "--proxy=orders-v1",
		"--repo=octocat/proxies", "--branch=feature/orders", "--create-pr")

	require.NoError(t, err)
	require.Contains(t, out, "Pull request #7 opened")
	require.Equal(t, "feature/orders", gh.prOpts.Head)
	require.Equal(t, "main", gh.prOpts.Base)
}

func TestDeployRejectsInvalidInput(t *testing.T) {
	setCredentials(t)

	_, err := execute(t, newTestApp(&fakeGitHub{}), "deploy", "--proxy=orders-v1", "--type=staging")
	require.ErrorIs(t, err, deployment.ErrValidation)

	_, err = execute(t, newTestApp(&fakeGitHub{}), "deploy", "--proxy=orders-v1", "--repo=octocat/proxies", "--branch=unknown")
	require.ErrorIs(t, err, deployment.ErrUnknownBranch)

	_, err = execute(t, newTestApp(&fakeGitHub{}), "simulate", "--proxy=orders-v1", "--group=nowhere")
	require.ErrorIs(t, err, deployment.ErrValidation)
}

func TestAppInstallationsRequiresApp(t *testing.T) {
	_, err := execute(t, newTestApp(&fakeGitHub{}), "app-installations")
	require.ErrorIs(t, err, githubClient.ErrAppNotConfigured)
}
