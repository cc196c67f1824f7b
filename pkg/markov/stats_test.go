package markov

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestStats(t *testing.T) {
	c := mustBuild(t, scenarioCorpus, 2)
	got := c.Stats()

	expected := ChainStats{
		Order:          2,
		CorpusTokens:   6,
		Keys:           3,
		Observations:   4,
		Vocabulary:     4,
		MaxBranching:   2,
		MeanSuccessors: 4.0 / 3.0,
		DeadEnds:       1,
	}
	if got != expected {
		t.Errorf("Stats() = %+v, want %+v", got, expected)
	}
}

func TestStatsEmpty(t *testing.T) {
	got := mustBuild(t, "hi", 2).Stats()
	if got.Keys != 0 || got.DeadEnds != 0 || got.MeanSuccessors != 0 {
		t.Errorf("unexpected stats for empty chain: %+v", got)
	}
	if got.Order != 2 || got.CorpusTokens != 1 {
		t.Errorf("Order = %d, CorpusTokens = %d", got.Order, got.CorpusTokens)
	}
}

func TestTopBranching(t *testing.T) {
	c := mustBuild(t, scenarioCorpus, 2)

	top := c.TopBranching(1)
	expected := []KeyBranching{{Key: NewKey("hi", "there"), Successors: 2, Distinct: 2}}
	if !reflect.DeepEqual(top, expected) {
		t.Errorf("TopBranching(1) = %+v, want %+v", top, expected)
	}

	all := c.TopBranching(0)
	if len(all) != 3 {
		t.Fatalf("TopBranching(0) returned %d keys, want 3", len(all))
	}
	// Ties keep first-seen order.
	if all[1].Key != NewKey("there", "mary") || all[2].Key != NewKey("mary", "hi") {
		t.Errorf("unexpected tie order: %+v", all)
	}
}

func TestWriteJSON(t *testing.T) {
	c := mustBuild(t, scenarioCorpus, 2)

	var buf bytes.Buffer
	if err := c.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Order int `json:"order"`
		Links []struct {
			Key        []string `json:"key"`
			Successors []string `json:"successors"`
		} `json:"links"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Order != 2 || len(decoded.Links) != 3 {
		t.Fatalf("decoded order %d with %d links", decoded.Order, len(decoded.Links))
	}
	first := decoded.Links[0]
	if !reflect.DeepEqual(first.Key, []string{"hi", "there"}) || !reflect.DeepEqual(first.Successors, []string{"mary", "juanita"}) {
		t.Errorf("first link = %+v", first)
	}
}
