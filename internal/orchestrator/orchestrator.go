// Package orchestrator assembles the core packages into one running
// session: it owns the tmux session, the CTO pane's lifecycle, the task
// pipeline, the approval gate, and the cooperative loops around them.
// The per-agent monitor loops live inside internal/supervisor; this
// package adds the periodic reconcile ticker, the message-queue poller,
// and the loop that reads the CTO pane's tee'd log and feeds new marker
// blocks into the pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mao-project/mao/internal/approval"
	"github.com/mao-project/mao/internal/config"
	"github.com/mao-project/mao/internal/feedback"
	"github.com/mao-project/mao/internal/ghclient"
	"github.com/mao-project/mao/internal/improvement"
	"github.com/mao-project/mao/internal/notify"
	"github.com/mao-project/mao/internal/parser"
	"github.com/mao-project/mao/internal/pipeline"
	"github.com/mao-project/mao/internal/queue"
	"github.com/mao-project/mao/internal/roles"
	"github.com/mao-project/mao/internal/sessionlog"
	"github.com/mao-project/mao/internal/statsdb"
	"github.com/mao-project/mao/internal/store"
	"github.com/mao-project/mao/internal/supervisor"
	"github.com/mao-project/mao/internal/tmux"
	"github.com/mao-project/mao/internal/vcs"
	"github.com/mao-project/mao/internal/worktree"
)

const ctoParentTaskID = "cto"

// State is a point-in-time, read-only view of the running session, for
// the dashboard UI and the CLI's observable-state commands.
type State struct {
	SessionID string
	Tasks []pipeline.SubTask
	Pending []queue.ApprovalItem
	Done bool
}

// Orchestrator owns one running session: the tmux session, the CTO
// pane, and every component wired to it.
type Orchestrator struct {
	root string
	st *store.Store
	sessions *sessionlog.Log
	sessionID string
	cfg config.Config
	catalogue *roles.Catalogue
	pricing config.PricingTable

	tm *tmux.Tmux
	worktrees *worktree.Manager
	approvals *queue.ApprovalQueue
	messages *queue.MessageQueue
	sup *supervisor.Supervisor
	pipe *pipeline.Pipeline
	gate *approval.Gate
	feedbacks *feedback.Store
	improves *improvement.Store
	notifier notify.Notifier
	statsDB *statsdb.DB // nil unless cfg.StatsDB enabled the SQLite cost mirror

	ctoPaneID string
	ctoLogFile string

	mu sync.Mutex
	agentSubtask map[string]string // agent_id -> subtask_id, for routing approval decisions back into the pipeline
	spawnsSeen int
	legacySeen int
	feedbackSeen int
	fbIDBySeen map[int]string // index into ParseFeedbackBlocks -> persisted feedback id, for [FEEDBACK_COMPLETED] correlation

	agentsCtx context.Context
	agentsCancel context.CancelFunc
	reconcileCancel context.CancelFunc
	pollCancel context.CancelFunc
	ctoWatchCancel context.CancelFunc
	wg sync.WaitGroup
}

// New assembles an Orchestrator rooted at projectRoot, bound to the
// named tmux session.
func New(projectRoot, tmuxSession string) (*Orchestrator, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cat, err := roles.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("loading role catalogue: %w", err)
	}
	pricing, err := config.LoadPricing(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("loading pricing table: %w", err)
	}

	st := store.New(filepath.Join(projectRoot, ".mao"))
	g := vcs.New(projectRoot)
	wt := worktree.New(projectRoot, g, ghclient.New())
	tm := tmux.New(tmuxSession)
	approvals := queue.NewApprovalQueue(st)
	sup := supervisor.New(projectRoot, tm, wt, approvals)
	sup.SetTimings(
		time.Duration(cfg.StartupWaitSecs)*time.Second,
		time.Duration(cfg.PollIntervalMS)*time.Millisecond,
		0,
	)
	sup.SetPricing(pricing)

	var sdb *statsdb.DB
	if cfg.StatsDB {
		sdb, err = statsdb.Open(filepath.Join(projectRoot, ".mao", "agent_states.db"))
		if err != nil {
			return nil, fmt.Errorf("opening stats db: %w", err)
		}
		sup.SetStatsSink(sdb)
	}

	notifier := notify.NewOSNotifier()
	if !cfg.Notify {
		notifier = notify.NewNoop()
	}

	return &Orchestrator{
		root: projectRoot,
		st: st,
		sessions: sessionlog.New(st),
		cfg: cfg,
		catalogue: cat,
		pricing: pricing,
		tm: tm,
		worktrees: wt,
		approvals: approvals,
		messages: queue.NewMessageQueue(st),
		sup: sup,
		pipe: pipeline.New(true),
		gate: approval.New(approvals, sup, wt, tm),
		feedbacks: feedback.New(st),
		improves: improvement.New(st),
		notifier: notifier,
		statsDB: sdb,
		agentSubtask: make(map[string]string),
		fbIDBySeen: make(map[int]string),
	}, nil
}

// State returns a snapshot of the current session.
func (o *Orchestrator) State() State {
	pending, _ := o.approvals.Pending()
	return State{
		SessionID: o.sessionID,
		Tasks: o.pipe.Tasks(),
		Pending: pending,
		Done: o.pipe.Done(),
	}
}

// Start brings up the tmux session, the CTO pane, and every cooperative
// loop, then sends prompt to the CTO. Start returns once the session is
// running; it ends only when Shutdown is called. A [FEEDBACK_COMPLETED]
// marker completes the matching feedback item but does not shut the
// session down.
func (o *Orchestrator) Start(ctx context.Context, prompt string) error {
	sid, err := sessionlog.NewSessionID(time.Now())
	if err != nil {
		return err
	}
	o.sessionID = sid
	if _, err := o.sessions.Create(sid, "", time.Now()); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	if err := o.tm.CreateSession(o.root); err != nil {
		return fmt.Errorf("creating tmux session: %w", err)
	}
	ctoPaneID, err := o.tm.PaneIDForTitle("cto")
	if err != nil {
		return fmt.Errorf("locating cto pane: %w", err)
	}
	o.ctoPaneID = ctoPaneID
	o.ctoLogFile = filepath.Join(o.root, ".mao", "logs", "cto_"+sid+".log")
	if err := os.MkdirAll(filepath.Dir(o.ctoLogFile), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := o.tm.EnableLogging(o.ctoPaneID, o.ctoLogFile); err != nil {
		return fmt.Errorf("enabling cto pane logging: %w", err)
	}

	if err := o.sessions.Append(sid, sessionlog.ChatMessage{Role: sessionlog.RoleUser, Content: prompt}); err != nil {
		return fmt.Errorf("recording initial prompt: %w", err)
	}
	if err := o.tm.SendPrompt(o.ctoPaneID, prompt); err != nil {
		return fmt.Errorf("sending initial prompt: %w", err)
	}

	o.agentsCtx, o.agentsCancel = context.WithCancel(ctx)

	reconcileCtx, reconcileCancel := context.WithCancel(ctx)
	o.reconcileCancel = reconcileCancel
	pollCtx, pollCancel := context.WithCancel(ctx)
	o.pollCancel = pollCancel
	ctoCtx, ctoCancel := context.WithCancel(ctx)
	o.ctoWatchCancel = ctoCancel

	o.wg.Add(3)
	go o.runReconcile(reconcileCtx)
	go o.runMessagePoll(pollCtx)
	go o.runCTOWatch(ctoCtx)

	o.wg.Add(1)
	go o.drainSupervisorEvents(o.agentsCtx)

	return nil
}

// Shutdown cancels the periodic timer, the message poller, and every
// per-agent monitor in that order, then waits for every cooperative loop
// to return.
func (o *Orchestrator) Shutdown() {
	if o.reconcileCancel != nil {
		o.reconcileCancel()
	}
	if o.pollCancel != nil {
		o.pollCancel()
	}
	if o.ctoWatchCancel != nil {
		o.ctoWatchCancel()
	}
	if o.agentsCancel != nil {
		o.agentsCancel()
	}
	o.wg.Wait()
	if o.statsDB != nil {
		_ = o.statsDB.Close()
	}
}

func reconcileInterval(cfg config.Config) time.Duration {
	if cfg.ReconcileMS <= 0 {
		return time.Second
	}
	return time.Duration(cfg.ReconcileMS) * time.Millisecond
}

// runReconcile is the 1 Hz state-reconciliation loop: it re-derives the
// "task info" summary and persists nothing itself — its job is to keep
// observable state current for a polling UI.
func (o *Orchestrator) runReconcile(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(reconcileInterval(o.cfg))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = o.pipe.TaskInfoSummary()
		}
	}
}

// runMessagePoll drains queue/messages/ addressed to "cto" at ~1 Hz.
func (o *Orchestrator) runMessagePoll(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	handlers := map[queue.MessageType]queue.HandlerFunc{
		queue.MessageQuestion: o.handleQuestion,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = o.messages.Dispatch(queue.MessageFilter{Receiver: "cto"}, handlers)
		}
	}
}

func (o *Orchestrator) handleQuestion(msg queue.Message) error {
	return o.sessions.Append(o.sessionID, sessionlog.ChatMessage{
		Role: sessionlog.RoleSystem,
		Content: fmt.Sprintf("[%s] %s", msg.Sender, msg.Content),
	})
}

// runCTOWatch re-reads the CTO pane's tee'd log on each poll interval
// and feeds newly observed marker blocks into the pipeline.
func (o *Orchestrator) runCTOWatch(ctx context.Context) {
	defer o.wg.Done()
	interval := time.Duration(o.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = supervisor.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			content, err := os.ReadFile(o.ctoLogFile)
			if err != nil {
				continue
			}
			o.ingestCTOOutput(string(content))
		}
	}
}

// drainSupervisorEvents consumes every terminal agent event and routes
// it to session logging and operator notification.
func (o *Orchestrator) drainSupervisorEvents(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.sup.Events():
			if !ok {
				return
			}
			o.handleSupervisorEvent(ev)
		}
	}
}

func (o *Orchestrator) handleSupervisorEvent(ev supervisor.Event) {
	switch ev.Kind {
	case supervisor.EventAwaitingApproval:
		_ = o.sessions.Append(o.sessionID, sessionlog.ChatMessage{
			Role: sessionlog.RoleSystem,
			Content: fmt.Sprintf("agent %s awaiting approval: %s", ev.AgentID, ev.Approval.MarshalForLog()),
		})
		_ = o.notifier.Send(notify.EventApprovalPending, ev.Approval.TaskDescription)
	case supervisor.EventFailed:
		o.mu.Lock()
		subtaskID := o.agentSubtask[ev.AgentID]
		o.mu.Unlock()
		if subtaskID != "" {
			_ = o.pipe.Fail(subtaskID)
		}
		_ = o.sessions.Append(o.sessionID, sessionlog.ChatMessage{
			Role: sessionlog.RoleSystem,
			Content: fmt.Sprintf("agent %s failed: %v", ev.AgentID, ev.Err),
		})
		_ = o.notifier.Send(notify.EventAgentFailed, fmt.Sprintf("%v", ev.Err))
	}
}

// ingestCTOOutput extracts spawn directives, legacy "Task N:" blocks,
// feedback blocks, and the feedback-completed marker from the CTO
// pane's cumulative log content. Since every parser.ParseX function is
// pure and deterministic over the same cumulative text, this function
// de-duplicates by slicing each parser's result to the blocks beyond
// what earlier ticks already consumed, rather than tracking raw byte
// offsets: the two are equivalent as long as no earlier block's text
// ever changes, which holds here because the CTO pane only appends.
func (o *Orchestrator) ingestCTOOutput(content string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	spawns, _ := parser.ParseAgentSpawns(content, o.catalogue)
	if len(spawns) > 0 {
		for _, d := range spawns[o.spawnsSeen:] {
			o.pipe.IngestSpawn(ctoParentTaskID, d)
		}
		o.spawnsSeen = len(spawns)
	} else {
		legacy := parser.ParseLegacyTasks(content)
		if len(legacy) > 0 {
			for _, lt := range legacy[o.legacySeen:] {
				o.pipe.IngestSpawn(ctoParentTaskID, parser.SpawnDirective{
						Task: lt.Description, Role: lt.Role, Model: lt.Model, Priority: "medium",
				})
			}
			o.legacySeen = len(legacy)
		}
	}

	blocks := parser.ParseFeedbackBlocks(content)
	for i, fb := range blocks[o.feedbackSeen:] {
		idx := o.feedbackSeen + i
		stored, err := o.feedbacks.Add(feedback.Feedback{
			Title: fb.Title,
			Description: fb.Description,
			Category: feedback.Category(fb.Category),
			Priority: fb.Priority,
			SessionID: o.sessionID,
		})
		if err == nil {
			o.fbIDBySeen[idx] = stored.ID
		}
	}
	o.feedbackSeen = len(blocks)

	if fc, ok := parser.ParseFeedbackCompleted(content); ok {
		o.completeLatestFeedback(fc)
	}

	o.startNextLocked()
}

// completeLatestFeedback records the PR URL from a [FEEDBACK_COMPLETED]
// marker against the most recently raised feedback item. Feedback has no dedicated pr_url
// field (only Improvement does), so the URL and summary
// are recorded in its metadata map.
func (o *Orchestrator) completeLatestFeedback(fc parser.FeedbackCompleted) {
	if o.feedbackSeen == 0 {
		return
	}
	id, ok := o.fbIDBySeen[o.feedbackSeen-1]
	if !ok {
		return
	}
	_, _ = o.feedbacks.Update(id, func(fb *feedback.Feedback) {
		fb.Status = feedback.StatusCompleted
		if fb.Metadata == nil {
			fb.Metadata = make(map[string]any)
		}
		fb.Metadata["pr_url"] = fc.PRURL
		fb.Metadata["summary"] = fc.Summary
	})
}

// startNextLocked starts the pipeline's current SubTask via the
// supervisor if it is queued and not already running. Caller must hold
// o.mu.
func (o *Orchestrator) startNextLocked() {
	current, ok := o.pipe.Current()
	if !ok || current.Status != queue.TaskQueued {
		return
	}
	for _, sid := range o.agentSubtask {
		if sid == current.SubtaskID {
			return
		}
	}

	agentID, err := supervisor.NewAgentID()
	if err != nil {
		return
	}
	o.agentSubtask[agentID] = current.SubtaskID
	o.pipe.MarkInProgress()

	role, err := o.catalogue.Resolve(current.Role)
	model := current.ModelTier
	if model == "" && err == nil {
		model = string(config.ResolveModelTier(o.cfg, role))
	}

	_ = o.sup.Start(o.agentsCtx, supervisor.StartSpec{
		AgentID: agentID,
		Role: current.Role,
		Model: model,
		TaskDescription: current.Description,
		TaskNumber: len(o.pipe.Tasks()),
	})
}

// Approve routes an operator `/approve` command to
// the approval gate, then advances the pipeline and starts the next
// SubTask if one remains.
func (o *Orchestrator) Approve(idPrefix, feedbackText string) (approval.Decision, error) {
	decision, err := o.gate.Approve(idPrefix, feedbackText)
	if err != nil {
		return approval.Decision{}, err
	}
	o.advanceAfterDecision(decision)
	return decision, nil
}

// Reject routes an operator `/reject` command to the approval gate,
// then retries the originating SubTask with the feedback folded into
// its prompt, or fails it terminally beyond the retry ceiling.
func (o *Orchestrator) Reject(idPrefix, feedbackText string) (approval.Decision, error) {
	decision, err := o.gate.Reject(idPrefix, feedbackText)
	if err != nil {
		return approval.Decision{}, err
	}
	o.retryAfterDecision(decision)
	return decision, nil
}

// Diff routes an operator `/diff` command straight through to the gate.
// Side-effect-free.
func (o *Orchestrator) Diff(idPrefix string) (string, error) {
	return o.gate.Diff(idPrefix)
}

func (o *Orchestrator) advanceAfterDecision(decision approval.Decision) {
	o.mu.Lock()
	delete(o.agentSubtask, decision.Item.AgentID)
	o.mu.Unlock()

	_, hasNext := o.pipe.Advance(decision.Item.CapturedOutput)

	o.mu.Lock()
	defer o.mu.Unlock()
	if hasNext {
		o.startNextLocked()
	} else if o.pipe.Done() {
		_ = o.sessions.Append(o.sessionID, sessionlog.ChatMessage{
			Role: sessionlog.RoleSystem, Content: "all sub-tasks complete",
		})
		_ = o.notifier.Send(notify.EventRunComplete, "every sub-task has been approved")
	}
}

func (o *Orchestrator) retryAfterDecision(decision approval.Decision) {
	o.mu.Lock()
	subtaskID := o.agentSubtask[decision.Item.AgentID]
	delete(o.agentSubtask, decision.Item.AgentID)
	o.mu.Unlock()

	if subtaskID == "" {
		return
	}
	if _, ok, err := o.pipe.Retry(subtaskID, decision.Feedback); err == nil && ok {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.startNextLocked()
	}
}
