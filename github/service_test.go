package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/imranansari/apigee-deploy-wf/config"
)

const testToken = "ghp_test"

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory := NewClientFactory(config.GitHubConfig{APIURL: server.URL}, nil, zerolog.Nop())
	return NewService(factory, zerolog.Nop())
}

func requireToken(t *testing.T, r *http.Request) bool {
	t.Helper()
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

func TestValidateCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if !requireToken(t, r) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"login":"octocat","name":"The Octocat","avatar_url":"https://avatars.example/octocat"}`)
	})
	svc := newTestService(t, mux)

	t.Run("valid token", func(t *testing.T) {
		user, err := svc.ValidateCredentials(context.Background(), "octocat", testToken)
		require.NoError(t, err)
		require.Equal(t, "octocat", user.Login)
		require.Equal(t, "The Octocat", user.Name)
		require.Equal(t, "https://avatars.example/octocat", user.AvatarURL)
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := svc.ValidateCredentials(context.Background(), "octocat", "wrong")
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.ValidateCredentials(context.Background(), "octocat", "")
		require.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestListRepositories(t *testing.T) {
	var query map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		require.True(t, requireToken(t, r))
		query = map[string]string{
			"sort":      r.URL.Query().Get("sort"),
			"direction": r.URL.Query().Get("direction"),
			"per_page":  r.URL.Query().Get("per_page"),
		}
		_, _ = io.WriteString(w, `[
			{"id":2,"name":"proxies","full_name":"octocat/proxies","default_branch":"main","private":true,
			 "owner":{"login":"octocat"},"updated_at":"2024-05-02T10:00:00Z"},
			{"id":1,"name":"old","full_name":"octocat/old","default_branch":"master",
			 "owner":{"login":"octocat"},"updated_at":"2023-01-01T10:00:00Z"}
		]`)
	})
	svc := newTestService(t, mux)

	repos, err := svc.ListRepositories(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"sort": "updated", "direction": "desc", "per_page": "100"}, query)
	require.Len(t, repos, 2)
	require.Equal(t, "octocat/proxies", repos[0].FullName)
	require.Equal(t, "main", repos[0].DefaultBranch)
	require.True(t, repos[0].Private)
	require.Equal(t, "octocat/old", repos[1].FullName)
}

func TestListRepositoriesFailure(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	repos, err := svc.ListRepositories(context.Background(), testToken)
	require.ErrorIs(t, err, ErrRequest)
	require.Empty(t, repos)
}

func TestListBranches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/proxies/branches", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"main","commit":{"sha":"abc123","url":"https://api.example/commits/abc123"},"protected":true},
			{"name":"feature/rate-limit","commit":{"sha":"def456"}}]`)
	})
	svc := newTestService(t, mux)

	branches, err := svc.ListBranches(context.Background(), testToken, "octocat/proxies")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	require.Equal(t, "main", branches[0].Name)
	require.Equal(t, "abc123", branches[0].Commit.SHA)
	require.True(t, branches[0].Protected)
	require.Equal(t, "feature/rate-limit", branches[1].Name)

	_, err = svc.ListBranches(context.Background(), testToken, "not-a-full-name")
	require.ErrorIs(t, err, ErrInvalidRepository)
}

func TestCreatePullRequest(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/proxies/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"number":7,"html_url":"https://github.example/octocat/proxies/pull/7","title":"Deploy orders-v1",
			"state":"open","draft":true,"user":{"login":"octocat"},"base":{"ref":"main","sha":"abc"},"head":{"ref":"feature","sha":"def"}}`)
	})
	svc := newTestService(t, mux)

	pr, err := svc.CreatePullRequest(context.Background(), testToken, "octocat/proxies", PROptions{
		Title:               "Deploy orders-v1",
		Description:         "Deploy orders-v1 to dev",
		Base:                "main",
		Head:                "feature",
		Draft:               true,
		MaintainerCanModify: true,
	})
	require.NoError(t, err)
	require.Equal(t, 7, pr.Number)
	require.Equal(t, "open", pr.State)
	require.Equal(t, "feature", pr.Head.Ref)

	require.Equal(t, "Deploy orders-v1", body["title"])
	require.Equal(t, "Deploy orders-v1 to dev", body["body"])
	require.Equal(t, "feature", body["head"])
	require.Equal(t, "main", body["base"])
	require.Equal(t, true, body["draft"])
	require.Equal(t, true, body["maintainer_can_modify"])
}

func TestGetPRStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/proxies/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"number":7,"state":"closed","merged":true,"title":"Deploy"}`)
	})
	svc := newTestService(t, mux)

	pr, err := svc.GetPRStatus(context.Background(), testToken, "octocat/proxies", 7)
	require.NoError(t, err)
	require.Equal(t, "closed", pr.State)
	require.True(t, pr.Merged)

	_, err = svc.GetPRStatus(context.Background(), testToken, "octocat/proxies", 8)
	require.True(t, errors.Is(err, ErrRequest))
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in        string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{in: "octocat/proxies", wantOwner: "octocat", wantRepo: "proxies"},
		{in: "octocat", wantErr: true},
		{in: "/proxies", wantErr: true},
		{in: "octocat/", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := SplitFullName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitFullName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("SplitFullName() = %q, %q", owner, repo)
			}
		})
	}
}
