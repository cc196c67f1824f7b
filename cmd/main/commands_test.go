package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

func TestGenerateCommand(t *testing.T) {
	testCases := []struct {
		name     string
		stdin    string
		args     []string
		expected string
	}{
		{
			name:     "Linear corpus from stdin",
			stdin:    "a b c d",
			args:     []string{"-n", "2", "--start", "a b"},
			expected: "a b c d\n",
		},
		{
			name:     "Streamed",
			stdin:    "a b c d",
			args:     []string{"-n", "2", "--start", "a b", "--stream"},
			expected: "a b c d\n",
		},
		{
			name:     "Max length",
			stdin:    "a b a b",
			args:     []string{"-n", "1", "--start", "a", "-m", "3"},
			expected: "a b a\n",
		},
		{
			name:     "Seeded walk is reproducible",
			stdin:    "x y z",
			args:     []string{"--seed", "99"},
			expected: "x y z\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"generate", "--config", writeTestConfigFile(t), "--no-history"}, tc.args...)
			out, err := executeCommand(t, tc.stdin, args...)
			if err != nil {
				t.Fatalf("generate error = %v", err)
			}
			if out != tc.expected {
				t.Errorf("output = %q, want %q", out, tc.expected)
			}
		})
	}
}

func TestGenerateCommandSourceAndOut(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(source, []byte("one two three"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "out.txt")

	out, err := executeCommand(t, "", "generate", "--config", writeTestConfigFile(t), "--no-history",
		"-s", source, "-n", "2", "-o", target)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing", out)
	}
	written, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(written) != "one two three\n" {
		t.Errorf("file content = %q", written)
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	testCases := []struct {
		name    string
		stdin   string
		args    []string
		target  error
		wantErr string
	}{
		{name: "Corpus too short", stdin: "hi", args: []string{"-n", "2"}, target: markov.ErrEmptyChain},
		{name: "Corpus too short streamed", stdin: "hi", args: []string{"-n", "2", "--stream"}, target: markov.ErrInvalidNGram},
		{name: "Unknown start", stdin: "a b c", args: []string{"-n", "1", "--start", "q"}, target: markov.ErrUnknownStart},
		{name: "Start width", stdin: "a b c", args: []string{"-n", "2", "--start", "a"}, target: markov.ErrInvalidNGram},
		{name: "Zero n-gram", stdin: "a b c", args: []string{"-n", "0"}, wantErr: "n_gram"},
		{name: "Stream with out", stdin: "a b c", args: []string{"--stream", "-o", "x.txt"}, wantErr: "--stream"},
		{name: "Missing source file", args: []string{"-s", "/nonexistent/corpus.txt"}, wantErr: "failed to open corpus"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"generate", "--config", writeTestConfigFile(t), "--no-history"}, tc.args...)
			_, err := executeCommand(t, tc.stdin, args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Errorf("error = %v, want %v", err, tc.target)
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestGenerateCommandRecordsHistory(t *testing.T) {
	configPath := writeTestConfigFile(t)

	if _, err := executeCommand(t, "a b c d", "generate", "--config", configPath, "-n", "2", "--start", "a b"); err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if _, err := executeCommand(t, "a b a b", "generate", "--config", configPath, "-n", "1", "--start", "a", "-m", "3", "--stream"); err != nil {
		t.Fatalf("streamed generate error = %v", err)
	}
	if _, err := executeCommand(t, "a b c d", "generate", "--config", configPath, "--no-history"); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	history, err := OpenHistoryStore(config.Server.HistoryDatabasePath, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	runs, err := history.Recent(context.Background(), 10)
	_ = history.Close()
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(runs))
	}
	if runs[0].Reason != "max_length" || runs[0].OutputTokens != 3 || runs[0].NGram != 1 {
		t.Errorf("unexpected streamed run: %+v", runs[0])
	}
	if runs[1].Reason != "dead_end" || runs[1].OutputTokens != 4 || runs[1].Source != "cli" {
		t.Errorf("unexpected run: %+v", runs[1])
	}

	out, err := executeCommand(t, "", "history", "--config", configPath)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected history table:\n%s", out)
	}
	if !strings.Contains(lines[1], "max_length") || !strings.Contains(lines[2], "dead_end") {
		t.Errorf("unexpected history rows:\n%s", out)
	}

	out, err = executeCommand(t, "", "history", "--config", configPath, "--summary")
	if err != nil {
		t.Fatalf("history --summary error = %v", err)
	}
	if !strings.Contains(out, "runs") || !strings.Contains(out, "3.50") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	out, err := executeCommand(t, "", "history", "--config", writeTestConfigFile(t))
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if out != "No runs recorded.\n" {
		t.Errorf("output = %q", out)
	}
	if _, err = executeCommand(t, "", "history", "--config", writeTestConfigFile(t), "--limit", "0"); err == nil {
		t.Error("expected a limit error")
	}
}

func TestInspectCommand(t *testing.T) {
	configPath := writeTestConfigFile(t)
	const corpus = "hi there mary hi there juanita"

	out, err := executeCommand(t, corpus, "inspect", "--config", configPath, "--json", "--top", "1")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	var report inspectReport
	if err = json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if report.Stats.Keys != 3 || report.Stats.Vocabulary != 4 || len(report.Top) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	out, err = executeCommand(t, corpus, "inspect", "--config", configPath)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"order", "dead ends", "KEY", "hi there"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output is missing %q:\n%s", want, out)
		}
	}

	out, err = executeCommand(t, corpus, "inspect", "--config", configPath, "--dump")
	if err != nil {
		t.Fatalf("inspect --dump error = %v", err)
	}
	var exported markov.ExportedChain
	if err = json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if exported.Order != 2 || len(exported.Links) != 3 {
		t.Errorf("unexpected export: %+v", exported)
	}
}

func TestConfigAndVersionCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chainwalk.toml")

	out, err := executeCommand(t, "", "config", "--config", path)
	if err != nil || !strings.HasPrefix(out, "Wrote") {
		t.Fatalf("config = %q, %v", out, err)
	}
	out, err = executeCommand(t, "", "config", "--config", path)
	if err != nil || !strings.Contains(out, "already exists") {
		t.Errorf("second config = %q, %v", out, err)
	}

	out, err = executeCommand(t, "", "version")
	if err != nil || !strings.Contains(out, Version) {
		t.Errorf("version = %q, %v", out, err)
	}
}

func TestLogLevelFlag(t *testing.T) {
	_, err := executeCommand(t, "a b c", "generate", "--config", writeTestConfigFile(t), "--no-history", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "log level") {
		t.Errorf("error = %v, want an unknown log level error", err)
	}
}
