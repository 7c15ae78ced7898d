package github

import "time"

// User is the authenticated GitHub identity
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url"`
}

// Owner identifies the owner of a repository or the author of a pull request
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repo mirrors the fields of a GitHub repository used by the deployment form
type Repo struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	Private       bool      `json:"private"`
	HTMLURL       string    `json:"html_url"`
	Owner         Owner     `json:"owner"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Commit is the head commit of a branch
type Commit struct {
	SHA string `json:"sha"`
	URL string `json:"url"`
}

// Branch mirrors a GitHub branch
type Branch struct {
	Name      string `json:"name"`
	Commit    Commit `json:"commit"`
	Protected bool   `json:"protected"`
}

// Ref is one side of a pull request
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PRDetails mirrors a GitHub pull request
type PRDetails struct {
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Draft     bool      `json:"draft"`
	Merged    bool      `json:"merged"`
	CreatedAt time.Time `json:"created_at"`
	User      Owner     `json:"user"`
	Base      Ref       `json:"base"`
	Head      Ref       `json:"head"`
}

// PROptions describes a pull request to open
type PROptions struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Base                string `json:"base"`
	Head                string `json:"head"`
	Draft               bool   `json:"draft,omitempty"`
	MaintainerCanModify bool   `json:"maintainer_can_modify,omitempty"`
}

// Installation is an account the GitHub App is installed on
type Installation struct {
	ID                  int64  `json:"id"`
	Account             string `json:"account"`
	AccountType         string `json:"account_type"`
	RepositorySelection string `json:"repository_selection"`
}
