package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployapi"
	"github.com/imranansari/apigee-deploy-wf/deployment"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Step states of the progress indicator
const (
	stepDone    = "done"
	stepActive  = "active"
	stepPending = "pending"
)

type stepView struct {
	Number int
	Label  string
	State  string
}

type pageData struct {
	State             deployment.Snapshot
	GitHubEnabled     bool
	Deploying         bool
	Steps             []stepView
	EnvironmentGroups []string
	EnvironmentTypes  []string
}

func newPageData(session *deployment.Session) pageData {
	snapshot := session.Snapshot()
	return pageData{
		State:             snapshot,
		GitHubEnabled:     session.GitHubEnabled(),
		Deploying:         snapshot.Deployment.Status == deployment.StatusDeploying,
		Steps:             stepViews(snapshot.Deployment),
		EnvironmentGroups: config.EnvironmentGroups(),
		EnvironmentTypes:  config.EnvironmentTypes(),
	}
}

func stepViews(state deployment.DeploymentState) []stepView {
	views := make([]stepView, 0, len(deployapi.Steps))
	for i, step := range deployapi.Steps {
		view := stepView{Number: i + 1, Label: step.Label, State: stepPending}
		switch {
		case i < state.CurrentStep:
			view.State = stepDone
		case i == state.CurrentStep && state.Status == deployment.StatusDeploying:
			view.State = stepActive
		}
		views = append(views, view)
	}
	return views
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	s.renderPage(w, indexTemplate, newPageData(session))
}

// renderPage writes nothing but a 500 when tmpl fails part way
func (s *Server) renderPage(w http.ResponseWriter, tmpl *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.logger.Error().Err(err).Str("template", tmpl.Name()).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
