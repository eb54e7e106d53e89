package supervisor

import "time"

// AgentCostRecord is one agent's token usage and estimated dollar cost,
// recorded when the agent reaches a terminal state. Tokens are an
// estimate (prompt and response character counts divided by four), since
// the tmux-piped CLI log carries no structured usage block to read exact
// counts from.
type AgentCostRecord struct {
	AgentID string
	Role string
	Model string
	TokensUsed int
	Cost float64
	UpdatedAt time.Time
}

// StatsSink receives an AgentCostRecord each time an agent reaches a
// terminal state. RecordAgentCost runs inline in the agent's monitoring
// goroutine and must not block for long.
type StatsSink interface {
	RecordAgentCost(rec AgentCostRecord) error
}

// NoopStatsSink discards every record. It is the Supervisor's default
// sink until SetStatsSink configures something else; the JSON-backed
// approval queue remains authoritative with or without a sink.
type NoopStatsSink struct{}

// RecordAgentCost implements StatsSink.
func (NoopStatsSink) RecordAgentCost(AgentCostRecord) error { return nil }
