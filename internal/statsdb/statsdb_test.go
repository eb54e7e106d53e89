package statsdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mao-project/mao/internal/supervisor"
)

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_states.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestRecordAgentCostAccumulates(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "agent_states.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	rec := supervisor.AgentCostRecord{
		AgentID: "a1",
		Role: "coder_backend",
		Model: "sonnet",
		TokensUsed: 1000,
		Cost: 0.01,
		UpdatedAt: time.Now(),
	}
	if err := db.RecordAgentCost(rec); err != nil {
		t.Fatalf("RecordAgentCost: %v", err)
	}
	if err := db.RecordAgentCost(rec); err != nil {
		t.Fatalf("RecordAgentCost (second): %v", err)
	}

	total, err := db.TotalCost()
	if err != nil {
		t.Fatalf("TotalCost: %v", err)
	}
	if want := 0.02; total != want {
		t.Errorf("TotalCost = %v, want %v", total, want)
	}
}

func TestRecordAgentCostSeparatesAgents(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "agent_states.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for _, id := range []string{"a1", "a2"} {
		rec := supervisor.AgentCostRecord{AgentID: id, Role: "reviewer", Model: "haiku", TokensUsed: 100, Cost: 0.001, UpdatedAt: time.Now()}
		if err := db.RecordAgentCost(rec); err != nil {
			t.Fatalf("RecordAgentCost(%s): %v", id, err)
		}
	}

	total, err := db.TotalCost()
	if err != nil {
		t.Fatalf("TotalCost: %v", err)
	}
	if want := 0.002; total < want-1e-9 || total > want+1e-9 {
		t.Errorf("TotalCost = %v, want %v", total, want)
	}
}
