package passthru

import (
	"encoding/json"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want CommandKind
	}{
		{"open", `1.234s ++ PTOpen("device", 0xFF)`, Open},
		{"close", "2.000s ++ PTClose(1)", Close},
		{"connect", "1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)", Connect},
		{"disconnect", "9.000s ++ PTDisconnect(1)", Disconnect},
		{"read", "1.500s ++ PTReadMsgs(1, 0x0019F9A8, 0x0019F9A4[1], 100)", ReadMessages},
		{"write", "1.400s ++ PTWriteMsgs(1, 0x0019F9A8, 0x0019F9A4[1], 100)", WriteMessages},
		{"start filter", "1.100s ++ PTStartMsgFilter(1, PASS_FILTER, 0x1, 0x2, 0x00000000, 0x3)", StartMessageFilter},
		{"stop filter", "3.100s ++ PTStopMsgFilter(1, 0)", StopMessageFilter},
		{"ioctl", "1.020s ++ PTIoctl(1, SET_CONFIG, 0x0019FAE8, 0x00000000)", Ioctl},
		{"unknown call", "1.000s ++ PTReadVersion(1, 0x1, 0x2, 0x3)", None},
		{"empty", "", None},
		// Both tokens present: the earlier declared kind wins.
		{"open and ioctl", "PTIoctl(1) then PTOpen(2)", Open},
		{"connect and read", "PTReadMsgs PTConnect", Connect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestKindTokens(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 10 {
		t.Fatalf("expected 10 kinds, got %d", len(kinds))
	}
	if kinds[0] != None || kinds[len(kinds)-1] != Ioctl {
		t.Errorf("unexpected kind order: %v", kinds)
	}
	for _, k := range kinds[1:] {
		if k.Token() == "" {
			t.Errorf("%v has no token", k)
		}
		// Every token must classify as its own kind.
		if got := Classify(k.Token()); got != k {
			t.Errorf("Classify(%q) = %v, want %v", k.Token(), got, k)
		}
	}
	if None.Token() != "" {
		t.Errorf("None should have no token, got %q", None.Token())
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  CommandKind
		ok    bool
	}{
		{"Open", Open, true},
		{"ptreadmsgs", ReadMessages, true},
		{"StartMessageFilter", StartMessageFilter, true},
		{" none ", None, true},
		{"bogus", None, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseKind(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseKind(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Kind CommandKind `json:"kind"`
	}{Ioctl})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"kind":"Ioctl"}` {
		t.Errorf("got %s", data)
	}

	var k CommandKind
	if err := json.Unmarshal([]byte(`"PTConnect"`), &k); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if k != Connect {
		t.Errorf("got %v, want Connect", k)
	}
	if err := json.Unmarshal([]byte(`"Nope"`), &k); err == nil {
		t.Error("expected error for unknown kind")
	}
}
