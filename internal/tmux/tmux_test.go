package tmux

import "testing"

func TestWrapErrorClassifiesSentinels(t *testing.T) {
	t.Parallel()
	tm := New("mao")

	cases := []struct {
		stderr string
		want   error
	}{
		{"error connecting to /tmp/tmux-0/default (no such file or directory)", ErrNoServer},
		{"no server running on /tmp/tmux-0/default", ErrNoServer},
		{"duplicate session: mao", ErrSessionExists},
		{"can't find session mao", ErrSessionNotFound},
		{"session not found: mao", ErrSessionNotFound},
		{"can't find pane %7", ErrPaneNotFound},
		{"can't find window 3", ErrPaneNotFound},
	}
	for _, c := range cases {
		err := tm.wrapError(nil, c.stderr, []string{"has-session"})
		if err != c.want {
			t.Errorf("wrapError(%q) = %v, want %v", c.stderr, err, c.want)
		}
	}
}

func TestWrapErrorFallsBackToRawStderr(t *testing.T) {
	t.Parallel()
	tm := New("mao")
	err := tm.wrapError(nil, "some unrecognized failure", []string{"split-window"})
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
	want := "tmux split-window: some unrecognized failure"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestTargetPassesThroughRawPaneID(t *testing.T) {
	t.Parallel()
	tm := New("mao")
	if got := tm.target("%3"); got != "%3" {
		t.Errorf("target(%%3) = %q, want %%3", got)
	}
}

func TestTargetQualifiesTitleWithSession(t *testing.T) {
	t.Parallel()
	tm := New("mao")
	got := tm.target("coder_backend-agent1")
	want := "mao:.coder_backend-agent1"
	if got != want {
		t.Errorf("target(title) = %q, want %q", got, want)
	}
}

func TestIsIdleShell(t *testing.T) {
	t.Parallel()
	for _, shell := range []string{"bash", "zsh", "sh", "fish"} {
		if !isIdleShell(shell) {
			t.Errorf("isIdleShell(%q) = false, want true", shell)
		}
	}
	if isIdleShell("claude") {
		t.Error("isIdleShell(claude) = true, want false")
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	t.Parallel()
	got := shellQuote("it's a path")
	want := `'it'\''s a path'`
	if got != want {
		t.Errorf("shellQuote = %q, want %q", got, want)
	}
}
