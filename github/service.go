package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v58/github"
	"github.com/rs/zerolog"
)

var (
	// ErrAuthentication is returned when GitHub rejects the credentials
	ErrAuthentication = errors.New("invalid GitHub credentials")

	// ErrRequest is returned for any other failed GitHub call
	ErrRequest = errors.New("GitHub request failed")

	// ErrInvalidRepository is returned for a repository name not in owner/name form
	ErrInvalidRepository = errors.New("repository must be in owner/name form")
)

// repoPageSize is the only page requested; results beyond it are not fetched
const repoPageSize = 100

// Service wraps the GitHub REST calls made on behalf of a form user.
// Every call is a single request with no retry or pagination.
type Service struct {
	factory *ClientFactory
	logger  zerolog.Logger
}

// NewService creates a GitHub service
func NewService(factory *ClientFactory, logger zerolog.Logger) *Service {
	return &Service{
		factory: factory,
		logger:  logger,
	}
}

// ValidateCredentials checks a personal access token and returns the authenticated user
func (s *Service) ValidateCredentials(ctx context.Context, username, token string) (*User, error) {
	client, err := s.factory.ForToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", ErrAuthentication)
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("GitHub credential validation failed")
		return nil, fmt.Errorf("failed to validate credentials: %w", ErrAuthentication)
	}

	if !strings.EqualFold(user.GetLogin(), username) {
		s.logger.Debug().
			Str("username", username).
			Str("login", user.GetLogin()).
			Msg("Token belongs to a different login than the one entered")
	}

	return &User{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// ListRepositories returns the user's repositories, most recently updated first
func (s *Service) ListRepositories(ctx context.Context, token string) ([]Repo, error) {
	client, err := s.factory.ForToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repositories: %w", ErrRequest)
	}

	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: repoPageSize},
	}

	repos, _, err := client.Repositories.List(ctx, "", opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list repositories")
		return nil, fmt.Errorf("failed to fetch repositories: %w", ErrRequest)
	}

	result := make([]Repo, 0, len(repos))
	for _, r := range repos {
		result = append(result, Repo{
			ID:            r.GetID(),
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			Description:   r.GetDescription(),
			DefaultBranch: r.GetDefaultBranch(),
			Private:       r.GetPrivate(),
			HTMLURL:       r.GetHTMLURL(),
			Owner: Owner{
				Login:     r.GetOwner().GetLogin(),
				AvatarURL: r.GetOwner().GetAvatarURL(),
			},
			UpdatedAt: r.GetUpdatedAt().Time,
		})
	}
	return result, nil
}

// ListBranches returns the first page of branches of a repository
func (s *Service) ListBranches(ctx context.Context, token, fullName string) ([]Branch, error) {
	owner, repo, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	client, err := s.factory.ForToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch branches: %w", ErrRequest)
	}

	branches, _, err := client.Repositories.ListBranches(ctx, owner, repo, &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: repoPageSize},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("repository", fullName).Msg("Failed to list branches")
		return nil, fmt.Errorf("failed to fetch branches: %w", ErrRequest)
	}

	result := make([]Branch, 0, len(branches))
	for _, b := range branches {
		result = append(result, Branch{
			Name: b.GetName(),
			Commit: Commit{
				SHA: b.GetCommit().GetSHA(),
				URL: b.GetCommit().GetURL(),
			},
			Protected: b.GetProtected(),
		})
	}
	return result, nil
}

// CreatePullRequest opens a pull request from opts.Head into opts.Base
func (s *Service) CreatePullRequest(ctx context.Context, token, fullName string, opts PROptions) (*PRDetails, error) {
	owner, repo, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	client, err := s.factory.ForToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", ErrRequest)
	}

	pr, _, err := client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               github.String(opts.Title),
		Body:                github.String(opts.Description),
		Head:                github.String(opts.Head),
		Base:                github.String(opts.Base),
		Draft:               github.Bool(opts.Draft),
		MaintainerCanModify: github.Bool(opts.MaintainerCanModify),
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("repository", fullName).
			Str("head", opts.Head).
			Str("base", opts.Base).
			Msg("Failed to create pull request")
		return nil, fmt.Errorf("failed to create pull request: %w", ErrRequest)
	}

	return toPRDetails(pr), nil
}

// GetPRStatus fetches a pull request by number
func (s *Service) GetPRStatus(ctx context.Context, token, fullName string, number int) (*PRDetails, error) {
	owner, repo, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	client, err := s.factory.ForToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", ErrRequest)
	}

	pr, _, err := client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		s.logger.Error().Err(err).Str("repository", fullName).Int("number", number).Msg("Failed to fetch pull request")
		return nil, fmt.Errorf("failed to fetch pull request: %w", ErrRequest)
	}

	return toPRDetails(pr), nil
}

// SplitFullName splits "owner/name" into its parts
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%q: %w", fullName, ErrInvalidRepository)
	}
	return owner, repo, nil
}

func toPRDetails(pr *github.PullRequest) *PRDetails {
	return &PRDetails{
		Number:    pr.GetNumber(),
		HTMLURL:   pr.GetHTMLURL(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		Draft:     pr.GetDraft(),
		Merged:    pr.GetMerged(),
		CreatedAt: pr.GetCreatedAt().Time,
		User: Owner{
			Login:     pr.GetUser().GetLogin(),
			AvatarURL: pr.GetUser().GetAvatarURL(),
		},
		Base: Ref{Ref: pr.GetBase().GetRef(), SHA: pr.GetBase().GetSHA()},
		Head: Ref{Ref: pr.GetHead().GetRef(), SHA: pr.GetHead().GetSHA()},
	}
}
