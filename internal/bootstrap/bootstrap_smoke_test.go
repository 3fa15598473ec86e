package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	platformerrors "chat-server-go/internal/platform/errors"
	platformlogging "chat-server-go/internal/platform/logging"
	platformtesting "chat-server-go/internal/platform/testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHAT_AUTH_SECRET", "bootstrap-test-secret")
	t.Setenv("CHAT_DATABASE_DRIVER", "sqlite")
	t.Setenv("CHAT_DATABASE_DSN", platformtesting.MemoryDSN("bootstrap"))
	t.Setenv("CHAT_LOG_LOG_DIR", t.TempDir())
	t.Setenv("CHAT_LOG_LOG_LEVEL", "error")
	t.Setenv("CHAT_AUTH_HASH_ARGON2_MEMORY_KIB", "64")
	t.Setenv("CHAT_AUTH_HASH_ARGON2_THREADS", "1")
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"storage:init-database",
		"auth:init-manager",
		"llm:init-completer",
		"chat:init-service",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	seen := map[string]bool{}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				t.Fatalf("step %s depends on %s which runs later", step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitStepsFailures(t *testing.T) {
	state := &appState{}

	err := executeInitSteps(context.Background(), []initStep{
		{ID: "b", DependsOn: []string{"a"}, Execute: func(context.Context, *appState) error { return nil }},
	}, state)
	if !platformerrors.IsKind(err, platformerrors.KindBootstrap) {
		t.Fatalf("expected bootstrap error for missing dependency, got %v", err)
	}

	err = executeInitSteps(context.Background(), []initStep{
		{ID: "db", Kind: platformerrors.KindStorage, Execute: func(context.Context, *appState) error {
			return errors.New("disk on fire")
		}},
	}, state)
	if !platformerrors.IsKind(err, platformerrors.KindStorage) {
		t.Fatalf("expected storage kind, got %v", err)
	}

	if err := executeInitSteps(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil state")
	}
}

func TestExecuteInitGraph(t *testing.T) {
	setTestEnv(t)

	state := &appState{}
	defer state.close()
	if err := executeInitSteps(context.Background(), InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	if state.config == nil {
		t.Fatal("config is nil after init")
	}
	if state.logger == nil {
		t.Fatal("logger is nil after init")
	}
	if state.db == nil {
		t.Fatal("database is nil after init")
	}
	if state.authManager == nil || state.chatService == nil {
		t.Fatal("services not initialised")
	}
	if state.metrics == nil {
		t.Fatal("metrics should be enabled by default")
	}
	if state.completer != nil {
		t.Fatal("completer should be disabled without an api key")
	}
}

func TestConfigErrorStopsGraph(t *testing.T) {
	setTestEnv(t)
	t.Setenv("CHAT_AUTH_SECRET", " ")

	state := &appState{}
	defer state.close()
	err := executeInitSteps(context.Background(), InitGraph(), state)
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if state.logger != nil {
		t.Fatal("later steps should not run")
	}
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := platformlogging.NewWithWriter(&buf, "info")
	logBootstrapGraph(InitGraph(), logger)

	content := buf.String()
	if !strings.Contains(content, "init graph") {
		t.Fatalf("graph header missing in log output: %s", content)
	}
	for _, step := range InitGraph() {
		if !strings.Contains(content, step.ID) {
			t.Fatalf("expected graph output to contain %q, got: %s", step.ID, content)
		}
	}
}

func TestBuildHandlerServesRoutes(t *testing.T) {
	setTestEnv(t)

	state := &appState{}
	defer state.close()
	if err := executeInitSteps(context.Background(), InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	handler, err := buildHandler(context.Background(), state)
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}

	for _, tc := range []struct {
		method, path string
		body         string
		want         int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/users", `{"email":"boot@example.com","password":"pw"}`, http.StatusCreated},
		{http.MethodGet, "/users", "", http.StatusUnauthorized},
		{http.MethodGet, "/nowhere", "", http.StatusNotFound},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		if tc.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: got %d want %d: %s", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunStopsOnCancel(t *testing.T) {
	setTestEnv(t)
	port := freePort(t)
	t.Setenv("CHAT_SERVER_IP", "127.0.0.1")
	t.Setenv("CHAT_SERVER_PORT", strconv.Itoa(port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{}) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy: %v", err)
		}
		select {
		case err := <-done:
			t.Fatalf("Run exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
