package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imranansari/apigee-deploy-wf/deployment"
	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

// errorResponse mirrors the deployment backend envelope
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type selectRepositoryRequest struct {
	Repository string `json:"repository"`
}

type selectBranchRequest struct {
	Branch string `json:"branch"`
}

type stateResponse struct {
	deployment.Snapshot
	GitHubEnabled bool `json:"githubEnabled"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := session.ValidateGitHub(r.Context(), req.Username, req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if err := session.Disconnect(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	if r.URL.Query().Get("refresh") == "true" {
		if err := session.RefreshRepositories(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, session.Snapshot().Repos)
}

func (s *Server) handleSelectRepository(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	var req selectRepositoryRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := session.SelectRepository(r.Context(), req.Repository); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) handleSelectBranch(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	var req selectBranchRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := session.SelectBranch(req.Branch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) handlePullRequest(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid pull request number"})
		return
	}
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	pr, err := session.PullRequestStatus(r.Context(), fullName, number)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pr)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	var form deployment.FormInput
	if !s.decode(w, r, &form) {
		return
	}

	if err := session.Start(s.runCtx, form); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusAccepted, session)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	if err := session.Reset(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, session)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeState(w http.ResponseWriter, status int, session *deployment.Session) {
	s.writeJSON(w, status, stateResponse{
		Snapshot:      session.Snapshot(),
		GitHubEnabled: session.GitHubEnabled(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain errors to HTTP statuses. Details stay in the server log.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)

	resp := errorResponse{Message: message}
	var fieldErrs deployment.FieldErrors
	if errors.As(err, &fieldErrs) {
		resp.Fields = fieldErrs
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		s.logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	s.writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, deployment.ErrValidation):
		return http.StatusBadRequest, "Deployment form is invalid"
	case errors.Is(err, deployment.ErrCredentialsMissing):
		return http.StatusBadRequest, "Username and token are required"
	case errors.Is(err, githubClient.ErrInvalidRepository), errors.Is(err, deployment.ErrUnknownBranch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, githubClient.ErrAuthentication):
		return http.StatusUnauthorized, "Failed to validate GitHub credentials"
	case errors.Is(err, deployment.ErrNotAuthenticated):
		return http.StatusUnauthorized, "GitHub authentication required"
	case errors.Is(err, deployment.ErrGitHubDisabled):
		return http.StatusNotFound, "GitHub integration is disabled"
	case errors.Is(err, deployment.ErrDeploymentInProgress):
		return http.StatusConflict, "A deployment is already in progress"
	case errors.Is(err, deployment.ErrValidationInProgress):
		return http.StatusConflict, "GitHub credentials are being validated"
	case errors.Is(err, githubClient.ErrRequest):
		return http.StatusBadGateway, "GitHub request failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
