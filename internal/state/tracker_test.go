package state

import (
	"strings"
	"testing"

	"passthru_parser/internal/builders"
	"passthru_parser/internal/passthru"
)

// call builds an expression with the given id fields. ok controls the
// return status.
func call(kind passthru.CommandKind, ok bool, ids ...string) *passthru.Expression {
	status := passthru.FieldResult{Name: builders.FieldReturnStatus, Value: "0:STATUS_NOERROR", State: passthru.Valid}
	if !ok {
		status = passthru.FieldResult{Name: builders.FieldReturnStatus, Value: "8:ERR_INVALID_CHANNEL_ID", State: passthru.Invalid}
	}
	e := &passthru.Expression{
		Kind:    kind,
		Segment: passthru.Segment{Text: "1.000s ++ " + kind.Token() + "(...)"},
		Fields:  []passthru.FieldResult{status},
	}
	names := []string{builders.FieldDeviceID, builders.FieldChannelID, builders.FieldFilterID}
	switch kind {
	case passthru.Disconnect, passthru.ReadMessages, passthru.WriteMessages, passthru.Ioctl,
		passthru.StartMessageFilter, passthru.StopMessageFilter:
		names = names[1:]
	}
	for i, id := range ids {
		f := passthru.FieldResult{Name: names[i], Value: id, State: passthru.Valid}
		if id == passthru.Unresolved || id == "-1" {
			f.State = passthru.Invalid
		}
		e.Fields = append(e.Fields, f)
	}
	return e
}

func check(exprs ...*passthru.Expression) []Issue {
	set := passthru.NewExpressionSet("test.txt")
	set.Expressions = exprs
	return Check(set)
}

func kinds(issues []Issue) []IssueKind {
	out := make([]IssueKind, len(issues))
	for i, is := range issues {
		out[i] = is.Kind
	}
	return out
}

func TestCleanSession(t *testing.T) {
	issues := check(
		call(passthru.Open, true, "1"),
		call(passthru.Connect, true, "1", "2"),
		call(passthru.StartMessageFilter, true, "2", "0"),
		call(passthru.WriteMessages, true, "2"),
		call(passthru.ReadMessages, true, "2"),
		call(passthru.Ioctl, true, "1"), // READ_VBATT on the device
		call(passthru.StopMessageFilter, true, "2", "0"),
		call(passthru.Disconnect, true, "2"),
		call(passthru.Close, true, "1"),
	)
	if len(issues) != 0 {
		t.Errorf("clean session reported %v", issues)
	}
}

func TestLifecycleIssues(t *testing.T) {
	tests := []struct {
		name  string
		exprs []*passthru.Expression
		want  []IssueKind
	}{
		{
			name:  "read before connect",
			exprs: []*passthru.Expression{call(passthru.ReadMessages, false, "5")},
			want:  []IssueKind{UnknownChannel},
		},
		{
			name:  "close unknown device",
			exprs: []*passthru.Expression{call(passthru.Close, true, "9")},
			want:  []IssueKind{UnknownDevice},
		},
		{
			name: "connect on unopened device leaks channel",
			exprs: []*passthru.Expression{
				call(passthru.Connect, true, "1", "2"),
			},
			want: []IssueKind{UnknownDevice, LeakedHandle},
		},
		{
			name: "device closed with channel connected",
			exprs: []*passthru.Expression{
				call(passthru.Open, true, "1"),
				call(passthru.Connect, true, "1", "2"),
				call(passthru.Close, true, "1"),
			},
			want: []IssueKind{LeakedHandle},
		},
		{
			name: "stop filter never started",
			exprs: []*passthru.Expression{
				call(passthru.Open, true, "1"),
				call(passthru.Connect, true, "1", "2"),
				call(passthru.StopMessageFilter, true, "2", "7"),
				call(passthru.Disconnect, true, "2"),
				call(passthru.Close, true, "1"),
			},
			want: []IssueKind{UnknownFilter},
		},
		{
			name: "duplicate open",
			exprs: []*passthru.Expression{
				call(passthru.Open, true, "1"),
				call(passthru.Open, true, "1"),
				call(passthru.Close, true, "1"),
			},
			want: []IssueKind{DuplicateHandle},
		},
		{
			name: "failed connect opens nothing",
			exprs: []*passthru.Expression{
				call(passthru.Open, true, "1"),
				call(passthru.Connect, false, "1", "-1"),
				call(passthru.Close, true, "1"),
			},
			want: []IssueKind{},
		},
		{
			name: "failed disconnect keeps channel",
			exprs: []*passthru.Expression{
				call(passthru.Open, true, "1"),
				call(passthru.Connect, true, "1", "2"),
				call(passthru.Disconnect, false, "2"),
			},
			want: []IssueKind{LeakedHandle, LeakedHandle},
		},
		{
			name: "unresolved ids are ignored",
			exprs: []*passthru.Expression{
				call(passthru.ReadMessages, true, passthru.Unresolved),
				call(passthru.Close, true, passthru.Unresolved),
			},
			want: []IssueKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(check(tt.exprs...))
			if len(got) != len(tt.want) {
				t.Fatalf("issues = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("issue %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLeakOrderAndIndex(t *testing.T) {
	issues := check(
		call(passthru.Open, true, "1"),
		call(passthru.Connect, true, "1", "2"),
		call(passthru.StartMessageFilter, true, "2", "0"),
	)
	if len(issues) != 3 {
		t.Fatalf("issues = %v", issues)
	}
	for _, is := range issues {
		if is.Index != -1 || is.Kind != LeakedHandle {
			t.Errorf("issue = %+v, want end-of-log leak", is)
		}
	}
	if !strings.Contains(issues[0].Message, "filter 0") ||
		!strings.Contains(issues[1].Message, "channel 2") ||
		!strings.Contains(issues[2].Message, "device 1") {
		t.Errorf("leaks out of order: %v", issues)
	}
	if !strings.HasPrefix(issues[0].String(), "end of log") {
		t.Errorf("String() = %q", issues[0].String())
	}
}

func TestTrackerCallbacksAndHandles(t *testing.T) {
	tr := NewTracker()
	var seen []Issue
	tr.OnIssue(func(is Issue) { seen = append(seen, is) })

	tr.Observe(0, call(passthru.Open, true, "1"))
	tr.Observe(1, call(passthru.Connect, true, "1", "3"))
	tr.Observe(2, call(passthru.Connect, true, "1", "4"))
	tr.Observe(3, call(passthru.WriteMessages, true, "9"))

	if got := tr.OpenDevices(); len(got) != 1 || got[0] != "1" {
		t.Errorf("OpenDevices() = %v", got)
	}
	if got := tr.OpenChannels(); len(got) != 2 || got[0] != "3" || got[1] != "4" {
		t.Errorf("OpenChannels() = %v", got)
	}
	if len(seen) != 1 || seen[0].Index != 3 || seen[0].Line == "" {
		t.Errorf("callback saw %+v", seen)
	}
	if !strings.HasPrefix(seen[0].String(), "#4 unknown_channel") {
		t.Errorf("String() = %q", seen[0].String())
	}
}
