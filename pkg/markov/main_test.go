package markov

import (
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// scenarioCorpus is the canonical bigram example: ("hi", "there") branches
// to "mary" or "juanita", and ("there", "juanita") is the corpus tail.
const scenarioCorpus = "hi there mary hi there juanita"

// scriptedSource returns a fixed sequence of picks, ignoring the range
// except to keep each pick within it. Exhausted scripts return 0.
type scriptedSource struct {
	picks []int
	calls int
}

func (s *scriptedSource) IntN(n int) int {
	i := s.calls
	s.calls++
	if i >= len(s.picks) {
		return 0
	}
	return s.picks[i] % n
}

// mustBuild tokenizes text on whitespace and builds a chain of width n.
func mustBuild(t testing.TB, text string, n int) *Chain {
	t.Helper()
	c, err := Build(strings.Fields(text), n)
	if err != nil {
		t.Fatalf("Build(%q, %d) error = %v", text, n, err)
	}
	return c
}

// containsToken reports whether token appears in tokens.
func containsToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
