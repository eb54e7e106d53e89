// Package parser extracts the structured marker blocks the CTO agent emits
// from free text. Every extractor is pure: no
// I/O, no state between calls, and deterministic for a given input, so a
// caller can re-run extraction against cumulative log content and
// de-duplicate the results itself.
//
// Grounded on regex-based marker extraction: the marker framing and field
// names are carried over byte-exact; the legacy "Task N:"
// fallback mirrors the same heuristic.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mao-project/mao/internal/roles"
)

// SpawnDirective is one parsed [MAO_AGENT_SPAWN] block.
type SpawnDirective struct {
	Task string
	Role string
	Model string
	Priority string
}

// InvalidBlock records a block that failed to parse or validate, so the
// caller can log it and move on.
type InvalidBlock struct {
	Raw string
	Reason string
}

var spawnPattern = regexp.MustCompile(`(?s)\[MAO_AGENT_SPAWN\](.*?)\[/MAO_AGENT_SPAWN\]`)

type spawnJSON struct {
	Task string `json:"task"`
	Role string `json:"role"`
	Model string `json:"model"`
	Priority string `json:"priority"`
}

// ParseAgentSpawns extracts every [MAO_AGENT_SPAWN] block in text. cat, if
// non-nil, is used to validate that the role resolves in the catalogue;
// blocks with an unknown role are reported as invalid rather than dropped
// silently.
func ParseAgentSpawns(text string, cat *roles.Catalogue) ([]SpawnDirective, []InvalidBlock) {
	var directives []SpawnDirective
	var invalid []InvalidBlock

	for _, m := range spawnPattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		var sj spawnJSON
		if err := json.Unmarshal([]byte(body), &sj); err != nil {
			invalid = append(invalid, InvalidBlock{Raw: body, Reason: "invalid JSON: " + err.Error()})
			continue
		}
		if sj.Task == "" || sj.Role == "" {
			invalid = append(invalid, InvalidBlock{Raw: body, Reason: "missing required task or role"})
			continue
		}
		if cat != nil {
			if _, err := cat.Resolve(sj.Role); err != nil {
				invalid = append(invalid, InvalidBlock{Raw: body, Reason: "unknown role: " + sj.Role})
				continue
			}
		}
		priority := sj.Priority
		if priority == "" {
			priority = "medium"
		}
		directives = append(directives, SpawnDirective{
			Task:     sj.Task,
			Role:     sj.Role,
			Model:    sj.Model,
			Priority: priority,
		})
	}
	return directives, invalid
}

// TaskComplete is the parsed result of a [MAO_TASK_COMPLETE] block, or of
// one of the prose alternatives.
type TaskComplete struct {
	Status string
	ChangedFiles []string
	Summary string
}

var taskCompletePattern = regexp.MustCompile(`(?s)\[MAO_TASK_COMPLETE\](.*?)\[/MAO_TASK_COMPLETE\]`)
var statusLinePattern = regexp.MustCompile(`(?m)^\s*status:\s*(\S+)\s*$`)
var summaryLinePattern = regexp.MustCompile(`(?m)^\s*summary:\s*(.+)$`)
var changedFilePattern = regexp.MustCompile(`(?m)^\s*-\s*(.+)$`)

// proseCompletionPhrases are alternative, unstructured ways an agent may
// signal completion without emitting the structured marker.
var proseCompletionPhrases = []string{
	"Task completed",
	"タスクを完了しました",
	"changes have been committed",
	"変更をコミットしました",
}

// ParseTaskComplete looks for the structured completion marker first, then
// falls back to the prose alternatives; the first match wins.
// ok is false if neither form is present.
func ParseTaskComplete(text string) (tc TaskComplete, ok bool) {
	if m := taskCompletePattern.FindStringSubmatch(text); m != nil {
		body := m[1]
		tc.Status = "success"
		if sm := statusLinePattern.FindStringSubmatch(body); sm != nil {
			tc.Status = strings.TrimSpace(sm[1])
		}
		if sm := summaryLinePattern.FindStringSubmatch(body); sm != nil {
			tc.Summary = strings.TrimSpace(sm[1])
		}
		if idx := strings.Index(body, "changed_files:"); idx >= 0 {
			rest := body[idx+len("changed_files:"):]
			if end := summaryLinePattern.FindStringIndex(rest); end != nil {
				rest = rest[:end[0]]
			}
			for _, fm := range changedFilePattern.FindAllStringSubmatch(rest, -1) {
				tc.ChangedFiles = append(tc.ChangedFiles, strings.TrimSpace(fm[1]))
			}
		}
		return tc, true
	}

	for _, phrase := range proseCompletionPhrases {
		if strings.Contains(text, phrase) {
			return TaskComplete{Status: "success", Summary: phrase}, true
		}
	}
	return TaskComplete{}, false
}

// FeedbackBlock is one parsed [MAO_FEEDBACK_START]...[MAO_FEEDBACK_END]
// block.
type FeedbackBlock struct {
	Title string
	Category string
	Priority string
	Description string
}

var feedbackPattern = regexp.MustCompile(`(?s)\[MAO_FEEDBACK_START\](.*?)\[MAO_FEEDBACK_END\]`)
var feedbackTitlePattern = regexp.MustCompile(`(?m)^\s*Title:\s*(.+)$`)
var feedbackCategoryPattern = regexp.MustCompile(`(?m)^\s*Category:\s*(\S+)`)
var feedbackPriorityPattern = regexp.MustCompile(`(?m)^\s*Priority:\s*(\S+)`)
var feedbackDescPattern = regexp.MustCompile(`(?s)Description:\s*\|?\s*\n?(.*)`)

// ParseFeedbackBlocks extracts every feedback block in text. Multiple
// blocks may occur.
func ParseFeedbackBlocks(text string) []FeedbackBlock {
	var blocks []FeedbackBlock
	for _, m := range feedbackPattern.FindAllStringSubmatch(text, -1) {
		body := m[1]
		titleM := feedbackTitlePattern.FindStringSubmatch(body)
		if titleM == nil {
			continue
		}
		fb := FeedbackBlock{
			Title: strings.TrimSpace(titleM[1]),
			Category: "improvement",
			Priority: "medium",
		}
		if cm := feedbackCategoryPattern.FindStringSubmatch(body); cm != nil {
			fb.Category = strings.TrimSpace(cm[1])
		}
		if pm := feedbackPriorityPattern.FindStringSubmatch(body); pm != nil {
			fb.Priority = strings.TrimSpace(pm[1])
		}
		if dm := feedbackDescPattern.FindStringSubmatch(body); dm != nil {
			fb.Description = strings.TrimSpace(dm[1])
		}
		blocks = append(blocks, fb)
	}
	return blocks
}

// FeedbackCompleted is the parsed result of a [FEEDBACK_COMPLETED] block.
type FeedbackCompleted struct {
	PRURL string
	Summary string
}

var feedbackCompletedPattern = regexp.MustCompile(`(?s)\[FEEDBACK_COMPLETED\](.*?)\[/FEEDBACK_COMPLETED\]`)
var prLinePattern = regexp.MustCompile(`(?m)^\s*PR:\s*(.+)$`)
var summaryBlockPattern = regexp.MustCompile(`(?s)Summary:\s*(.+)`)

// ParseFeedbackCompleted looks for the [FEEDBACK_COMPLETED] marker. The
// orchestrator records the result against the latest feedback item; it
// does not shut the session down on this marker.
func ParseFeedbackCompleted(text string) (FeedbackCompleted, bool) {
	m := feedbackCompletedPattern.FindStringSubmatch(text)
	if m == nil {
		return FeedbackCompleted{}, false
	}
	body := m[1]
	fc := FeedbackCompleted{PRURL: "N/A", Summary: "completed"}
	if pm := prLinePattern.FindStringSubmatch(body); pm != nil {
		fc.PRURL = strings.TrimSpace(pm[1])
	}
	if sm := summaryBlockPattern.FindStringSubmatch(body); sm != nil {
		fc.Summary = strings.TrimSpace(sm[1])
	}
	return fc, true
}

// LegacyTask is one block parsed by the "Task N:" fallback heuristic, used
// only when a CTO response contains no [MAO_AGENT_SPAWN] blocks at all.
type LegacyTask struct {
	Number int
	Description string
	Role string
	Model string
}

var legacyTaskPattern = regexp.MustCompile(`(?is)(?:Task|タスク)\s*(\d+)[:：]\s*(.+?)(\n\s*\n(?:Task|タスク)|\n\s*\n---|\z)`)
var legacyRolePattern = regexp.MustCompile(`(?i)(?:Role|ロール)[:：]\s*(\S+)`)
var legacyModelPattern = regexp.MustCompile(`(?i)(?:Model|モデル)[:：]\s*(\S+)`)

// ParseLegacyTasks extracts "Task N: <description>" blocks, the pre-skill
// format fell back to.
func ParseLegacyTasks(text string) []LegacyTask {
	var tasks []LegacyTask
	// A block's terminator can hold the next block's "Task" header, so each
	// search resumes at the terminator instead of after it.
	for rest := text; ; {
		loc := legacyTaskPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		m := []string{rest[loc[0]:loc[1]], rest[loc[2]:loc[3]], rest[loc[4]:loc[5]]}
		rest = rest[loc[6]:]
		var num int
		for _, c := range m[1] {
			num = num*10 + int(c-'0')
		}
		content := strings.TrimSpace(m[2])
		role := "general"
		if rm := legacyRolePattern.FindStringSubmatch(content); rm != nil {
			role = rm[1]
		}
		model := "sonnet"
		if mm := legacyModelPattern.FindStringSubmatch(content); mm != nil {
			model = mm[1]
		}
		lines := strings.SplitN(content, "\n", 2)
		description := strings.TrimSpace(lines[0])
		tasks = append(tasks, LegacyTask{Number: num, Description: description, Role: role, Model: model})
	}
	return tasks
}
