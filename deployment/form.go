package deployment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

// ErrValidation is wrapped by FieldErrors
var ErrValidation = errors.New("deployment form is invalid")

// FormInput is the user's deployment request
type FormInput struct {
	ProxyName        string `json:"proxyName"`
	EnvironmentGroup string `json:"environmentGroup"`
	EnvironmentType  string `json:"environmentType"`
	ProxyDirectory   string `json:"proxyDirectory"`
	GitHubUsername   string `json:"githubUsername"`
	GitHubToken      string `json:"githubToken,omitempty"`

	Repository    string `json:"repository,omitempty"`
	Branch        string `json:"branch,omitempty"`
	CommitMessage string `json:"commitMessage,omitempty"`
	CreatePR      bool   `json:"createPR,omitempty"`
}

// DefaultForm returns the form as first shown
func DefaultForm() FormInput {
	return FormInput{
		EnvironmentGroup: config.EnvironmentGroupDefault,
		EnvironmentType:  config.EnvironmentTypeDev,
		ProxyDirectory:   config.DefaultProxyDirectory,
	}
}

// FieldErrors maps form fields to their error messages
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error {
	return ErrValidation
}

// Validate applies the required-field rules. GitHub credentials are only
// required when the GitHub capability is enabled.
func (f FormInput) Validate(requireGitHub bool) error {
	errs := FieldErrors{}

	required := []struct {
		field, value, message string
	}{
		{"proxyName", f.ProxyName, "Proxy name is required"},
		{"environmentGroup", f.EnvironmentGroup, "Environment group is required"},
		{"environmentType", f.EnvironmentType, "Environment type is required"},
		{"proxyDirectory", f.ProxyDirectory, "Proxy directory is required"},
	}
	if requireGitHub {
		required = append(required,
			struct{ field, value, message string }{"githubUsername", f.GitHubUsername, "GitHub username is required"},
		)
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = r.message
		}
	}

	if _, ok := errs["environmentGroup"]; !ok && !config.IsValidEnvironmentGroup(f.EnvironmentGroup) {
		errs["environmentGroup"] = fmt.Sprintf("Unknown environment group %q", f.EnvironmentGroup)
	}
	if _, ok := errs["environmentType"]; !ok && !config.IsValidEnvironmentType(f.EnvironmentType) {
		errs["environmentType"] = fmt.Sprintf("Unknown environment type %q", f.EnvironmentType)
	}
	if f.CreatePR && (f.Repository == "" || f.Branch == "") {
		errs["createPR"] = "Select a repository and branch to open a pull request"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Config converts the form into the deployment backend payload
func (f FormInput) Config(token string) deployapi.Config {
	return deployapi.Config{
		ProxyName:        strings.TrimSpace(f.ProxyName),
		EnvironmentGroup: f.EnvironmentGroup,
		EnvironmentType:  f.EnvironmentType,
		ProxyDirectory:   strings.TrimSpace(f.ProxyDirectory),
		GitHubUsername:   f.GitHubUsername,
		GitHubToken:      token,
	}
}
