package activities

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/imranansari/apigee-deploy-wf/deployapi"
)

var proxyConfig = deployapi.Config{
	ProxyName:        "orders-v1",
	EnvironmentGroup: "default",
	EnvironmentType:  "dev",
	ProxyDirectory:   "apiproxy",
	GitHubUsername:   "octocat",
}

func newDeployActivities(t *testing.T, status int, body string) *DeployActivities {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewDeployActivities(deployapi.NewClient(srv.URL+"/api", zerolog.Nop()))
}

func TestDeployProxy(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := newDeployActivities(t, http.StatusOK, `{"success":true,"message":"deployed revision 3"}`)
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.DeployProxy, proxyConfig)
	require.NoError(t, err)

	var resp deployapi.Response
	require.NoError(t, val.Get(&resp))
	require.True(t, resp.Success)
	require.Equal(t, "deployed revision 3", resp.Message)
}

func TestValidateProxyConfigErrors(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		body             string
		wantType         string
		wantMessage      string
		wantNonRetryable bool
	}{
		{
			name:             "bad request",
			status:           http.StatusBadRequest,
			body:             `{"success":false,"message":"proxy bundle missing"}`,
			wantType:         ValidationErrorType,
			wantMessage:      "proxy bundle missing",
			wantNonRetryable: true,
		},
		{
			name:             "unauthorized",
			status:           http.StatusUnauthorized,
			body:             `{"message":"bad token"}`,
			wantType:         AuthenticationErrorType,
			wantMessage:      "bad token",
			wantNonRetryable: true,
		},
		{
			name:        "server error",
			status:      http.StatusBadGateway,
			body:        `not json`,
			wantType:    "DeployAPIError",
			wantMessage: "Validation failed",
		},
		{
			name:             "success false",
			status:           http.StatusOK,
			body:             `{"success":false}`,
			wantType:         ValidationErrorType,
			wantMessage:      "Validation failed",
			wantNonRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			a := newDeployActivities(t, tt.status, tt.body)
			env.RegisterActivity(a)

			_, err := env.ExecuteActivity(a.ValidateProxyConfig, proxyConfig)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			require.Equal(t, tt.wantType, appErr.Type())
			require.Equal(t, tt.wantMessage, appErr.Message())
			require.Equal(t, tt.wantNonRetryable, appErr.NonRetryable())
		})
	}
}
