package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v58/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/imranansari/apigee-deploy-wf/config"
)

// ErrAppNotConfigured is returned by App operations when no App ID or private key is set
var ErrAppNotConfigured = errors.New("GitHub App is not configured")

// ClientFactory creates authenticated GitHub clients
type ClientFactory struct {
	config     config.GitHubConfig
	privateKey []byte
	logger     zerolog.Logger

	// Cache for installation IDs by organization
	mu                sync.Mutex
	installationCache map[string]int64
}

// NewClientFactory creates a new GitHub client factory.
// privateKey may be nil when no GitHub App is configured.
func NewClientFactory(cfg config.GitHubConfig, privateKey []byte, logger zerolog.Logger) *ClientFactory {
	return &ClientFactory{
		config:            cfg,
		privateKey:        privateKey,
		logger:            logger,
		installationCache: make(map[string]int64),
	}
}

// ForToken creates a client authenticated with a personal access token
func (f *ClientFactory) ForToken(ctx context.Context, token string) (*github.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("personal access token is empty")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return f.withBaseURL(github.NewClient(oauth2.NewClient(ctx, tokenSource)))
}

// AppConfigured reports whether GitHub App credentials are available
func (f *ClientFactory) AppConfigured() bool {
	return f.config.AppID != 0 && len(f.privateKey) > 0
}

// ForOrg creates a GitHub App installation client for the given organization
func (f *ClientFactory) ForOrg(ctx context.Context, org string) (*github.Client, error) {
	if !f.AppConfigured() {
		return nil, ErrAppNotConfigured
	}

	f.mu.Lock()
	installationID, exists := f.installationCache[org]
	f.mu.Unlock()
	if exists {
		return f.installationClient(installationID)
	}

	installations, err := f.listInstallations(ctx)
	if err != nil {
		return nil, err
	}

	for _, installation := range installations {
		if installation.GetAccount().GetLogin() == org {
			installationID = installation.GetID()
			break
		}
	}
	if installationID == 0 {
		return nil, fmt.Errorf("no installation found for organization '%s'", org)
	}

	f.mu.Lock()
	f.installationCache[org] = installationID
	f.mu.Unlock()

	f.logger.Info().
		Int64("app_id", f.config.AppID).
		Int64("installation_id", installationID).
		Str("organization", org).
		Msg("Found GitHub App installation for organization")

	return f.installationClient(installationID)
}

// Installations lists the accounts the GitHub App is installed on
func (f *ClientFactory) Installations(ctx context.Context) ([]Installation, error) {
	if !f.AppConfigured() {
		return nil, ErrAppNotConfigured
	}

	installations, err := f.listInstallations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Installation, 0, len(installations))
	for _, installation := range installations {
		result = append(result, Installation{
			ID:                  installation.GetID(),
			Account:             installation.GetAccount().GetLogin(),
			AccountType:         installation.GetAccount().GetType(),
			RepositorySelection: installation.GetRepositorySelection(),
		})
	}
	return result, nil
}

// listInstallations authenticates as the App itself, which can only see its installations
func (f *ClientFactory) listInstallations(ctx context.Context) ([]*github.Installation, error) {
	atr, err := ghinstallation.NewAppsTransport(http.DefaultTransport, f.config.AppID, f.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create app transport: %w", err)
	}
	atr.BaseURL = f.apiRoot()

	appClient, err := f.withBaseURL(github.NewClient(&http.Client{Transport: atr}))
	if err != nil {
		return nil, err
	}

	installations, _, err := appClient.Apps.ListInstallations(ctx, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list app installations: %w", err)
	}
	return installations, nil
}

// installationClient creates a client for a specific installation ID
func (f *ClientFactory) installationClient(installationID int64) (*github.Client, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, f.config.AppID, installationID, f.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport: %w", err)
	}
	itr.BaseURL = f.apiRoot()

	return f.withBaseURL(github.NewClient(&http.Client{Transport: itr}))
}

// withBaseURL points the client at the configured API root
func (f *ClientFactory) withBaseURL(client *github.Client) (*github.Client, error) {
	baseURL, err := url.Parse(f.apiRoot() + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub API URL: %w", err)
	}
	client.BaseURL = baseURL
	return client, nil
}

func (f *ClientFactory) apiRoot() string {
	apiURL := f.config.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return strings.TrimSuffix(apiURL, "/")
}
