package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConfig returns the defaults with the history database moved into a
// temporary directory.
func newTestConfig(t testing.TB) *Config {
	t.Helper()
	config := DefaultConfig()
	config.Server.HistoryDatabasePath = filepath.Join(t.TempDir(), "history.db")
	return config
}

func newTestConfigManager(t testing.TB) *ConfigManager {
	t.Helper()
	return NewConfigManager(filepath.Join(t.TempDir(), "chainwalk.json"), newTestConfig(t))
}

func newTestHistory(t testing.TB) *HistoryStore {
	t.Helper()
	history, err := OpenHistoryStore(filepath.Join(t.TempDir(), "history.db"), discardLogger())
	if err != nil {
		t.Fatalf("OpenHistoryStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = history.Close()
	})
	return history
}

// doRequest sends body to the handler and returns the recorded response.
func doRequest(t testing.TB, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// executeCommand runs the root command with args, feeding stdin, and returns
// what it wrote to stdout.
func executeCommand(t testing.TB, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// writeTestConfigFile saves a config pointing history into a temporary
// directory and returns its path.
func writeTestConfigFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chainwalk.json")
	if err := SaveConfig(path, newTestConfig(t)); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	return path
}

func newTestServerAPI(cm *ConfigManager, actionChan chan string) *ServerAPI {
	return NewServerAPI(cm, NewAuthAPI(cm, discardLogger()), actionChan, discardLogger())
}

// addTestKey registers rawKey with the given scopes on cm.
func addTestKey(cm *ConfigManager, rawKey string, scopes ...string) {
	cm.config.Server.APIKeys = append(cm.config.Server.APIKeys, APIKey{Hash: hashAPIKey(rawKey), Scopes: scopes})
}

// doAuthRequest is doRequest with an Authorization header.
func doAuthRequest(t testing.TB, handler http.Handler, method, target, authorization, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
