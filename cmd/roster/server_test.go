package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dsn string) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			BasePath:        "/api",
		},
		Database: DatabaseConfig{DSN: dsn},
		Log:      LogConfig{Level: "info", Format: "json"},
		Audit: AuditConfig{
			BufferSize:    64,
			WriteTimeout:  time.Second,
			RetryAttempts: 2,
			RetryDelay:    time.Millisecond,
		},
	}
}

// =============================================================================
// Server Tests
// =============================================================================

func TestNewServer_ServesAndAudits(t *testing.T) {
	srv, err := NewServer(testConfig(":memory:"), testLogger())
	require.NoError(t, err)

	srv.activity.Start()
	srv.tracker.Start()

	body := `{"name":"Ana","age":30,"position":"Engineer","department":"R&D"}`
	req := httptest.NewRequest(http.MethodPost, "/api/employees", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ana"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/employees", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"position":"Engineer"`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.activity.Flush(ctx))
	require.NoError(t, srv.tracker.Flush(ctx))

	activity, err := srv.store.CountActivity(ctx)
	require.NoError(t, err)
	tracking, err := srv.store.CountTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, activity)
	assert.Equal(t, 2, tracking)

	require.NoError(t, srv.Shutdown(ctx))
}

func TestNewServer_CreatesDataDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "roster.db")

	srv, err := NewServer(testConfig(dsn), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	_, err = os.Stat(dsn)
	assert.NoError(t, err)
}

func TestNewServer_DatabaseError(t *testing.T) {
	// A regular file where the data directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewServer(testConfig(filepath.Join(blocker, "roster.db")), testLogger())
	require.Error(t, err)

	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, ExitDatabaseError, serverErr.ExitCode)
	assert.Equal(t, ExitDatabaseError, exitCode(err))
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	srv, err := NewServer(testConfig(":memory:"), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServer_StartListenerError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(":memory:")
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port

	srv, err := NewServer(cfg, testLogger())
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.Error(t, err)

	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, ExitHTTPServerError, serverErr.ExitCode)
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, ensureDataDir(":memory:"))
	require.NoError(t, ensureDataDir("file::memory:?cache=shared"))
	require.NoError(t, ensureDataDir("roster.db"))

	require.NoError(t, ensureDataDir("file:"+filepath.Join(dir, "a", "roster.db")+"?_journal=WAL"))
	info, err := os.Stat(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestServerError(t *testing.T) {
	inner := errors.New("boom")
	err := &ServerError{Op: "Start", Err: inner, ExitCode: ExitHTTPServerError}

	assert.Equal(t, "Start: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

// =============================================================================
// CLI Tests
// =============================================================================

func TestOpenAPICommand(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"openapi":"3.0.3"`},
		{"yaml", "openapi: 3.0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			clearEnv(t)

			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"openapi", "--format", tt.format})

			require.NoError(t, cmd.ExecuteContext(context.Background()))
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), "/employees/{id}")
			assert.Contains(t, out.String(), "Roster API")
		})
	}
}

func TestOpenAPICommand_UnknownFormat(t *testing.T) {
	clearEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"openapi", "--format", "xml"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), Version)
}

func TestRun_ConfigErrorExitCode(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	assert.Equal(t, ExitConfigError, run([]string{"serve", "--config", tmpFile}))
}
