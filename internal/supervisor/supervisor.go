// Package supervisor owns the full lifecycle of one agent instance: claim
// a pane, create an isolated worktree, start the interactive
// LLM, monitor its log for a completion marker, and hand the result off as
// an ApprovalItem. Grounded on a per-role manager shape
// (internal/witness/manager.go, internal/refinery/engineer.go): a struct
// wrapping the subprocess drivers plus a monitoring loop, but recast from a
// long-lived daemon process onto a per-SubTask goroutine, since this
// orchestrator supervises many short-lived agents per session rather than
// one persistent role process per rig.
package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mao-project/mao/internal/config"
	"github.com/mao-project/mao/internal/parser"
	"github.com/mao-project/mao/internal/queue"
	"github.com/mao-project/mao/internal/roles"
	"github.com/mao-project/mao/internal/vcs"
	"github.com/mao-project/mao/internal/worktree"
)

// Default timings: overridable by the orchestrator.
const (
	DefaultStartupWait = 3 * time.Second
	DefaultPollInterval = 750 * time.Millisecond
	DefaultAgentTimeout = 600 * time.Second
)

// PaneDriver is the subset of internal/tmux.Tmux the supervisor needs. A
// narrow interface here lets tests exercise the monitoring loop without a
// real tmux server.
type PaneDriver interface {
	Assign(role, agentID, cwd, logFile string) (string, error)
	StartInteractiveLLM(paneID, command, model, cwd string, allowUnsafe bool) error
	SendPrompt(paneID, text string) error
	DisableLogging(paneID string) error
	KillPane(paneID string) error
}

// WorktreeCreator is the subset of internal/worktree.Manager the supervisor
// needs to isolate a worker agent's edits.
type WorktreeCreator interface {
	CreateWorkerWorktree(parentBranch, agentID string) (worktree.Worktree, error)
}

// Status is an agent's local lifecycle status.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning Status = "running"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusFailed Status = "failed"
)

// Agent is one supervised agent instance.
type Agent struct {
	AgentID string
	Role string
	Model string
	PaneID string
	Worktree *worktree.Worktree // nil when running at the project root
	LogFile string
	Status Status
	PromptChars int // length of the augmented prompt sent, for cost estimation
}

// EventKind distinguishes the two terminal outcomes of Start.
type EventKind string

const (
	EventAwaitingApproval EventKind = "awaiting_approval"
	EventFailed EventKind = "failed"
)

// Event is emitted exactly once per Start call, on the Supervisor's shared
// Events channel.
type Event struct {
	Kind EventKind
	AgentID string
	Approval queue.ApprovalItem
	Err error
}

// StartSpec describes one agent to launch.
type StartSpec struct {
	AgentID string
	Role string
	Model string
	TaskDescription string
	TaskNumber int
	// ParentBranch, when set, puts the agent in a per-agent worktree
	// branched off it (feedback/retry mode). Empty means the project root.
	ParentBranch string
}

// Supervisor manages the lifecycle of every active agent in one session.
type Supervisor struct {
	pane PaneDriver
	wt WorktreeCreator
	approvals *queue.ApprovalQueue

	projectRoot string
	logDir string
	llmCommand string
	allowUnsafe bool

	startupWait time.Duration
	pollInterval time.Duration
	agentTimeout time.Duration

	mu sync.Mutex
	agents map[string]*Agent

	events chan Event

	stats StatsSink
	pricing config.PricingTable
}

// New returns a Supervisor rooted at projectRoot, with logs under
// <projectRoot>/.mao/logs.
func New(projectRoot string, pane PaneDriver, wt WorktreeCreator, approvals *queue.ApprovalQueue) *Supervisor {
	return &Supervisor{
		pane: pane,
		wt: wt,
		approvals: approvals,
		projectRoot: projectRoot,
		logDir: filepath.Join(projectRoot, ".mao", "logs"),
		llmCommand: "claude",
		startupWait: DefaultStartupWait,
		pollInterval: DefaultPollInterval,
		agentTimeout: DefaultAgentTimeout,
		agents: make(map[string]*Agent),
		events: make(chan Event, 16),
		stats: NoopStatsSink{},
		pricing: config.DefaultPricing(),
	}
}

// SetStatsSink configures where each agent's AgentCostRecord is reported.
// The default is a NoopStatsSink, so this is optional.
func (s *Supervisor) SetStatsSink(sink StatsSink) {
	if sink == nil {
		sink = NoopStatsSink{}
	}
	s.stats = sink
}

// SetPricing overrides the per-model pricing table used to turn token
// estimates into a dollar cost. The default is config.DefaultPricing.
func (s *Supervisor) SetPricing(p config.PricingTable) { s.pricing = p }

// SetLLMCommand overrides the interactive LLM command (default "claude").
func (s *Supervisor) SetLLMCommand(cmd string) { s.llmCommand = cmd }

// SetAllowUnsafe controls whether the LLM is started with sandbox/permission
// prompts bypassed (forwarded to PaneDriver.StartInteractiveLLM).
func (s *Supervisor) SetAllowUnsafe(allow bool) { s.allowUnsafe = allow }

// SetTimings overrides the startup wait, poll interval, and agent timeout.
// Zero values leave the corresponding default untouched.
func (s *Supervisor) SetTimings(startupWait, pollInterval, agentTimeout time.Duration) {
	if startupWait > 0 {
		s.startupWait = startupWait
	}
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if agentTimeout > 0 {
		s.agentTimeout = agentTimeout
	}
}

// Events returns the channel on which every agent's terminal outcome is
// reported. The orchestrator shell drains it.
func (s *Supervisor) Events() <-chan Event { return s.events }

// Agent returns the supervisor's current view of an agent, if known.
func (s *Supervisor) Agent(agentID string) (Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// Release removes an agent's in-memory record entirely. Called by the approval
// gate after an approve/reject decision, before the pane and worktree are
// released.
func (s *Supervisor) Release(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
}

func newLogName(agentID string) string {
	return agentID + ".log"
}

// Start runs the launch sequence for one agent, asynchronously: pane claim
// and worktree creation happen synchronously (so Start can fail fast if the
// multiplexer or git is unavailable), then the LLM start, prompt send, and
// monitoring loop run in a background goroutine until ctx is cancelled or a
// terminal event fires.
func (s *Supervisor) Start(ctx context.Context, spec StartSpec) error {
	logFile := filepath.Join(s.logDir, newLogName(spec.AgentID))
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	var wtRef *worktree.Worktree
	cwd := s.projectRoot
	if spec.ParentBranch != "" {
		wt, err := s.wt.CreateWorkerWorktree(spec.ParentBranch, spec.AgentID)
		if err != nil {
			return fmt.Errorf("creating worker worktree: %w", err)
		}
		wtRef = &wt
		cwd = wt.Path
	}

	paneID, err := s.pane.Assign(spec.Role, spec.AgentID, cwd, logFile)
	if err != nil {
		return fmt.Errorf("claiming pane: %w", err)
	}

	agent := &Agent{
		AgentID: spec.AgentID,
		Role: spec.Role,
		Model: spec.Model,
		PaneID: paneID,
		Worktree: wtRef,
		LogFile: logFile,
		Status: StatusStarting,
	}
	s.mu.Lock()
	s.agents[spec.AgentID] = agent
	s.mu.Unlock()

	go s.run(ctx, spec, agent)
	return nil
}

func (s *Supervisor) run(ctx context.Context, spec StartSpec, agent *Agent) {
	if err := s.pane.StartInteractiveLLM(agent.PaneID, s.llmCommand, agent.Model, s.cwd(agent), s.allowUnsafe); err != nil {
		s.fail(agent, fmt.Errorf("starting LLM: %w", err))
		return
	}

	select {
	case <-time.After(s.startupWait):
	case <-ctx.Done():
		s.fail(agent, ctx.Err())
		return
	}

	prompt := augmentPrompt(spec.TaskDescription, agent.Worktree)
	s.setPromptChars(agent, len(prompt))
	if err := s.pane.SendPrompt(agent.PaneID, prompt); err != nil {
		s.fail(agent, fmt.Errorf("sending prompt: %w", err))
		return
	}

	s.setStatus(agent, StatusRunning)
	s.monitor(ctx, spec, agent)
}

// augmentPrompt builds the operator description plus, when under a feedback
// or worker worktree, a notice of the working directory and branch, plus
// the completion-marker instruction.
func augmentPrompt(description string, wt *worktree.Worktree) string {
	prompt := description
	if wt != nil {
		prompt += fmt.Sprintf("\n\nYou are working in %s on branch %s.", wt.Path, wt.Branch)
	}
	prompt += "\n\nWhen finished, emit a [MAO_TASK_COMPLETE]... [/MAO_TASK_COMPLETE] block " +
		"with status, changed_files, and a one-line summary."
	return prompt
}

func (s *Supervisor) monitor(ctx context.Context, spec StartSpec, agent *Agent) {
	deadline := time.Now().Add(s.agentTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.fail(agent, ctx.Err())
			return
		case <-ticker.C:
			content, err := os.ReadFile(agent.LogFile)
			if err != nil && !os.IsNotExist(err) {
				continue
			}
			if tc, ok := parser.ParseTaskComplete(string(content)); ok {
				s.complete(agent, spec, tc)
				return
			}
			if time.Now().After(deadline) {
				s.fail(agent, fmt.Errorf("timed out after %s without a completion marker", s.agentTimeout))
				return
			}
		}
	}
}

func (s *Supervisor) complete(agent *Agent, spec StartSpec, tc parser.TaskComplete) {
	_ = s.pane.DisableLogging(agent.PaneID)

	var changedFiles []string
	var worktreePath, branchName string
	if agent.Worktree != nil {
		worktreePath = agent.Worktree.Path
		branchName = agent.Worktree.Branch
		g := vcs.New(agent.Worktree.Path)
		if names, err := g.DiffNameOnlyHEAD(); err == nil {
			changedFiles = names
		}
	}
	if len(changedFiles) == 0 && len(tc.ChangedFiles) > 0 {
		changedFiles = tc.ChangedFiles
	}

	content, _ := os.ReadFile(agent.LogFile)
	s.recordCost(agent, len(content))

	item := queue.ApprovalItem{
		AgentID: agent.AgentID,
		TaskNumber: spec.TaskNumber,
		TaskDescription: spec.TaskDescription,
		Role: agent.Role,
		Model: agent.Model,
		Status: queue.ApprovalPending,
		PaneID: agent.PaneID,
		WorktreePath: worktreePath,
		BranchName: branchName,
		ChangedFiles: changedFiles,
		CapturedOutput: string(content),
	}

	stored, err := s.approvals.Add(item)
	if err != nil {
		s.fail(agent, fmt.Errorf("persisting approval item: %w", err))
		return
	}

	s.setStatus(agent, StatusAwaitingApproval)
	s.events <- Event{Kind: EventAwaitingApproval, AgentID: agent.AgentID, Approval: stored}
}

func (s *Supervisor) fail(agent *Agent, err error) {
	_ = s.pane.DisableLogging(agent.PaneID)
	_ = s.pane.KillPane(agent.PaneID)
	s.setStatus(agent, StatusFailed)
	s.events <- Event{Kind: EventFailed, AgentID: agent.AgentID, Err: err}
}

func (s *Supervisor) setStatus(agent *Agent, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent.Status = status
}

func (s *Supervisor) setPromptChars(agent *Agent, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent.PromptChars = n
}

// recordCost estimates token usage from the prompt and response lengths
// and reports it to the configured StatsSink. Best-effort: a sink error
// never fails the agent's own completion.
func (s *Supervisor) recordCost(agent *Agent, responseChars int) {
	inputTokens := agent.PromptChars / 4
	outputTokens := responseChars / 4
	cost := s.pricing.Cost(roles.ModelTier(agent.Model), inputTokens, outputTokens)
	_ = s.stats.RecordAgentCost(AgentCostRecord{
		AgentID: agent.AgentID,
		Role: agent.Role,
		Model: agent.Model,
		TokensUsed: inputTokens + outputTokens,
		Cost: cost,
		UpdatedAt: time.Now(),
	})
}

func (s *Supervisor) cwd(agent *Agent) string {
	if agent.Worktree != nil {
		return agent.Worktree.Path
	}
	return s.projectRoot
}

// NewAgentID returns a random 8 hex char agent id.
func NewAgentID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating agent id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
