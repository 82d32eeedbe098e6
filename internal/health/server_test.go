package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type stubMongoChecker struct {
	err   error
	pings int
}

func (s *stubMongoChecker) Ping(context.Context) error {
	s.pings++
	return s.err
}

func checkHealth(t *testing.T, server *Server) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		checker  MongoChecker
		wantBody string
	}{
		{
			name:     "mongo reachable",
			checker:  &stubMongoChecker{},
			wantBody: `{"status":"ok"}`,
		},
		{
			name:     "mongo ping fails",
			checker:  &stubMongoChecker{err: errors.New("mongo down")},
			wantBody: `{"status":"degraded","mongo":"error"}`,
		},
		{
			name:     "checker not wired",
			checker:  nil,
			wantBody: `{"status":"degraded","mongo":"error"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hookLogger, _ := logtest.NewNullLogger()
			server := NewServer(8080, tc.checker, logrus.NewEntry(hookLogger))

			rr := checkHealth(t, server)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected HTTP 200, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected content-type application/json, got %s", ct)
			}
			if body := strings.TrimSpace(rr.Body.String()); body != tc.wantBody {
				t.Fatalf("unexpected body: %s", body)
			}
		})
	}
}

func TestHealthEndpointPingsMongoOncePerRequest(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	checker := &stubMongoChecker{}
	server := NewServer(8080, checker, logrus.NewEntry(hookLogger))

	checkHealth(t, server)
	checkHealth(t, server)

	if checker.pings != 2 {
		t.Fatalf("expected one ping per request, got %d", checker.pings)
	}
}

func TestHealthEndpointWarnsOnMongoFailure(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	server := NewServer(8080, &stubMongoChecker{err: errors.New("mongo down")}, logrus.NewEntry(hookLogger))

	checkHealth(t, server)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["event"] == "health_mongo_error" {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a health_mongo_error warning")
	}
}

func TestNewServerBindsConfiguredPort(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	server := NewServer(9091, &stubMongoChecker{}, logrus.NewEntry(hookLogger))

	if server.server.Addr != ":9091" {
		t.Fatalf("unexpected listen address %q", server.server.Addr)
	}
}

func TestShutdownOnNilServerIsSafe(t *testing.T) {
	var server *Server
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
