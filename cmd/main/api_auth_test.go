package main

import (
	"encoding/json"
	"net/http"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestServerRoutesRequireKeys(t *testing.T) {
	cm := newTestConfigManager(t)
	addTestKey(cm, "reader-key", scopeServerRead)
	addTestKey(cm, "manager-key", scopeServerManage)
	addTestKey(cm, "master-key", scopeAll)

	actionChan := make(chan string, 1)
	server := NewServer(cm, discardLogger(), nil, actionChan)

	testCases := []struct {
		name          string
		method        string
		target        string
		authorization string
		wantStatus    int
	}{
		{name: "No token", method: http.MethodGet, target: "/api/server/version", wantStatus: http.StatusUnauthorized},
		{name: "Unknown token", method: http.MethodGet, target: "/api/server/version", authorization: "Bearer guess", wantStatus: http.StatusUnauthorized},
		{name: "Wrong scheme", method: http.MethodGet, target: "/api/server/version", authorization: "Basic reader-key", wantStatus: http.StatusUnauthorized},
		{name: "Reader reads version", method: http.MethodGet, target: "/api/server/version", authorization: "Bearer reader-key", wantStatus: http.StatusOK},
		{name: "Reader reads config", method: http.MethodGet, target: "/api/server/config", authorization: "Bearer reader-key", wantStatus: http.StatusOK},
		{name: "Reader cannot write config", method: http.MethodPut, target: "/api/server/config", authorization: "Bearer reader-key", wantStatus: http.StatusForbidden},
		{name: "Reader cannot shut down", method: http.MethodPost, target: "/api/server/shutdown", authorization: "Bearer reader-key", wantStatus: http.StatusForbidden},
		{name: "Manager cannot read", method: http.MethodGet, target: "/api/server/version", authorization: "Bearer manager-key", wantStatus: http.StatusForbidden},
		{name: "Master reads", method: http.MethodGet, target: "/api/server/config", authorization: "bearer master-key", wantStatus: http.StatusOK},
		{name: "Generation stays open", method: http.MethodPost, target: "/api/generate", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doAuthRequest(t, server, tc.method, tc.target, tc.authorization, "")
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("401 response is missing the WWW-Authenticate header")
			}
		})
	}

	select {
	case action := <-actionChan:
		t.Fatalf("an unauthorized request triggered %q", action)
	default:
	}

	rec := doAuthRequest(t, server, http.MethodPost, "/api/server/shutdown", "Bearer manager-key", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("manager shutdown status = %d", rec.Code)
	}
	select {
	case action := <-actionChan:
		if action != actionShutdown {
			t.Errorf("action = %q, want %q", action, actionShutdown)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no action was sent")
	}
}

func TestAuthMe(t *testing.T) {
	cm := newTestConfigManager(t)
	server := NewServer(cm, discardLogger(), nil, make(chan string, 1))

	scopesFor := func(authorization string) []string {
		t.Helper()
		rec := doAuthRequest(t, server, http.MethodGet, "/api/auth/me", authorization, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Scopes []string `json:"scopes"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		return resp.Scopes
	}

	if got := scopesFor(""); !reflect.DeepEqual(got, []string{scopeAll}) {
		t.Errorf("open API scopes = %q, want the master scope", got)
	}

	addTestKey(cm, "both", scopeServerRead, scopeServerManage)
	if got := scopesFor("Bearer both"); !reflect.DeepEqual(got, []string{scopeServerManage, scopeServerRead}) {
		t.Errorf("scopes = %q", got)
	}
}

func TestConfigUpdateKeepsKeys(t *testing.T) {
	cm := newTestConfigManager(t)
	addTestKey(cm, "manager-key", scopeServerRead, scopeServerManage)
	server := NewServer(cm, discardLogger(), nil, make(chan string, 1))

	update := cm.Get()
	update.Generate.NGram = 4
	update.Server.APIKeys = nil
	body, _ := json.Marshal(update)
	if strings.Contains(string(body), "api_keys") {
		t.Fatalf("api_keys should be omitted from %s", body)
	}

	rec := doAuthRequest(t, server, http.MethodPut, "/api/server/config", "Bearer manager-key", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	current := cm.Get()
	if current.Generate.NGram != 4 || len(current.Server.APIKeys) != 1 {
		t.Errorf("NGram = %d, keys = %d, want 4 and 1", current.Generate.NGram, len(current.Server.APIKeys))
	}
	if rec = doAuthRequest(t, server, http.MethodGet, "/api/server/version", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("API was opened by the update, status = %d", rec.Code)
	}
}

func TestValidateAPIKeys(t *testing.T) {
	testCases := []struct {
		name    string
		key     APIKey
		wantErr string
	}{
		{name: "Valid", key: APIKey{Hash: hashAPIKey("k"), Scopes: []string{scopeServerRead}}},
		{name: "Short hash", key: APIKey{Hash: "abc", Scopes: []string{scopeAll}}, wantErr: "hex characters"},
		{name: "Non-hex hash", key: APIKey{Hash: strings.Repeat("z", 64), Scopes: []string{scopeAll}}, wantErr: "not hex"},
		{name: "No scopes", key: APIKey{Hash: hashAPIKey("k")}, wantErr: "scope"},
		{name: "Unknown scope", key: APIKey{Hash: hashAPIKey("k"), Scopes: []string{"history:write"}}, wantErr: "unknown scope"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Server.APIKeys = []APIKey{tc.key}
			err := config.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	testCases := map[string]bool{
		"127.0.0.1:7280": true,
		"localhost:7280": true,
		"[::1]:7280":     true,
		":7280":          false,
		"0.0.0.0:7280":   false,
		"10.0.0.5:80":    false,
		"garbage":        false,
	}
	for addr, expected := range testCases {
		if got := isLoopbackAddr(addr); got != expected {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, expected)
		}
	}
}

func TestKeyCommands(t *testing.T) {
	path := writeTestConfigFile(t)

	out, err := executeCommand(t, "", "key", "list", "--config", path)
	if err != nil || out != "No API keys configured.\n" {
		t.Fatalf("key list = %q, %v", out, err)
	}

	out, err = executeCommand(t, "", "key", "create", "--config", path, "--scope", scopeServerRead, "--description", "dashboard")
	if err != nil {
		t.Fatalf("key create error = %v", err)
	}
	rawKey := strings.TrimSpace(out)
	if !strings.HasPrefix(rawKey, "cw_") {
		t.Fatalf("unexpected key %q", rawKey)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(config.Server.APIKeys) != 1 {
		t.Fatalf("stored %d keys, want 1", len(config.Server.APIKeys))
	}
	stored := config.Server.APIKeys[0]
	if stored.Hash != hashAPIKey(rawKey) || !reflect.DeepEqual(stored.Scopes, []string{scopeServerRead}) || stored.Description != "dashboard" {
		t.Errorf("unexpected stored key: %+v", stored)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(onDisk), rawKey) {
		t.Error("the raw key must not be stored")
	}

	out, err = executeCommand(t, "", "key", "list", "--config", path)
	if err != nil || !strings.Contains(out, "server:read") || !strings.Contains(out, "dashboard") {
		t.Errorf("key list = %q, %v", out, err)
	}

	if _, err = executeCommand(t, "", "key", "create", "--config", path, "--scope", "everything"); err == nil {
		t.Error("expected an unknown scope to be rejected")
	}
}
