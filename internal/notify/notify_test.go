package notify

import "testing"

func TestQuoteEscapesDoubleQuotesAndBackslashes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`hello`, `"hello"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, c := range cases {
		if got := quote(c.in); got != c.want {
			t.Errorf("quote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNoopNotifierNeverErrors(t *testing.T) {
	n := noopNotifier{}
	if err := n.Send("title", "message"); err != nil {
		t.Errorf("noopNotifier.Send returned %v, want nil", err)
	}
}

func TestNewOSNotifierReturnsANotifier(t *testing.T) {
	n := NewOSNotifier()
	if n == nil {
		t.Fatal("expected a non-nil Notifier")
	}
}
