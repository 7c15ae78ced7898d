package deployapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
)

var testConfig = Config{
	ProxyName:        "orders-v1",
	EnvironmentGroup: "default",
	EnvironmentType:  "dev",
	ProxyDirectory:   "apiproxy",
	GitHubUsername:   "octocat",
}

func TestClientCalls(t *testing.T) {
	tests := []struct {
		name        string
		call        func(*Client) (*Response, error)
		path        string
		status      int
		body        string
		wantMessage string
		wantErr     bool
	}{
		{
			name:        "deploy ok",
			call:        func(c *Client) (*Response, error) { return c.Deploy(context.Background(), testConfig) },
			path:        "/api/deploy",
			status:      http.StatusOK,
			body:        `{"success":true,"message":"deployed","data":{"revision":3}}`,
			wantMessage: "deployed",
		},
		{
			name:        "validate ok",
			call:        func(c *Client) (*Response, error) { return c.Validate(context.Background(), testConfig) },
			path:        "/api/validate",
			status:      http.StatusOK,
			body:        `{"success":true,"message":"valid"}`,
			wantMessage: "valid",
		},
		{
			name:        "deploy error with server message",
			call:        func(c *Client) (*Response, error) { return c.Deploy(context.Background(), testConfig) },
			path:        "/api/deploy",
			status:      http.StatusBadRequest,
			body:        `{"success":false,"message":"proxy bundle missing"}`,
			wantMessage: "proxy bundle missing",
			wantErr:     true,
		},
		{
			name:        "deploy error without body",
			call:        func(c *Client) (*Response, error) { return c.Deploy(context.Background(), testConfig) },
			path:        "/api/deploy",
			status:      http.StatusBadGateway,
			wantMessage: "Deployment failed",
			wantErr:     true,
		},
		{
			name:        "validate error without message",
			call:        func(c *Client) (*Response, error) { return c.Validate(context.Background(), testConfig) },
			path:        "/api/validate",
			status:      http.StatusInternalServerError,
			body:        `{"success":false}`,
			wantMessage: "Validation failed",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotConfig Config
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotConfig)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL+"/api/", zerolog.Nop())
			resp, err := tt.call(client)

			if gotPath != tt.path {
				t.Errorf("path = %q, want %q", gotPath, tt.path)
			}
			if gotConfig != testConfig {
				t.Errorf("posted config = %+v", gotConfig)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrRequest) {
					t.Errorf("error %v does not wrap ErrRequest", err)
				}
				if err.Error() != tt.wantMessage {
					t.Errorf("error message = %q, want %q", err.Error(), tt.wantMessage)
				}
				return
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := NewClient(server.URL, zerolog.Nop()).Deploy(context.Background(), testConfig)
	if err == nil || err.Error() != "Deployment failed" {
		t.Fatalf("Deploy() error = %v, want generic failure", err)
	}
}

func TestSimulate(t *testing.T) {
	mock := clock.NewMock()
	client := NewClient("http://localhost:5000/api", zerolog.Nop(), WithClock(mock))

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := client.Simulate(context.Background(), testConfig)
		done <- result{resp, err}
	}()

	var elapsed time.Duration
	for {
		select {
		case r := <-done:
			if r.err != nil {
				t.Fatalf("Simulate() error = %v", r.err)
			}
			if !r.resp.Success || r.resp.Message != "Deployment completed successfully" {
				t.Errorf("Simulate() = %+v", r.resp)
			}
			if elapsed < 7*time.Second {
				t.Errorf("Simulate() finished after %v of clock time, want at least 7s", elapsed)
			}
			return
		default:
			mock.Add(250 * time.Millisecond)
			elapsed += 250 * time.Millisecond
		}
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("http://localhost:5000/api", zerolog.Nop(), WithClock(clock.NewMock()))
	if _, err := client.Simulate(ctx, testConfig); !errors.Is(err, context.Canceled) {
		t.Fatalf("Simulate() error = %v, want context.Canceled", err)
	}
}
