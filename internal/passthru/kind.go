// Package passthru provides the J2534 PassThru call log types: command kinds,
// segments, field results and expressions.
package passthru

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandKind identifies which PassThru API call a segment represents.
// Declaration order matters: Classify returns the earliest kind whose token
// appears in the text.
type CommandKind int

const (
	None CommandKind = iota
	Open
	Close
	Connect
	Disconnect
	ReadMessages
	WriteMessages
	StartMessageFilter
	StopMessageFilter
	Ioctl
)

// kindInfo holds the display name and log token for each kind, indexed by kind.
var kindInfo = [...]struct {
	name  string
	token string
}{
	None:               {"None", ""},
	Open:               {"Open", "PTOpen"},
	Close:              {"Close", "PTClose"},
	Connect:            {"Connect", "PTConnect"},
	Disconnect:         {"Disconnect", "PTDisconnect"},
	ReadMessages:       {"ReadMessages", "PTReadMsgs"},
	WriteMessages:      {"WriteMessages", "PTWriteMsgs"},
	StartMessageFilter: {"StartMessageFilter", "PTStartMsgFilter"},
	StopMessageFilter:  {"StopMessageFilter", "PTStopMsgFilter"},
	Ioctl:              {"Ioctl", "PTIoctl"},
}

// Kinds returns every command kind in declaration order.
func Kinds() []CommandKind {
	kinds := make([]CommandKind, len(kindInfo))
	for i := range kindInfo {
		kinds[i] = CommandKind(i)
	}
	return kinds
}

func (k CommandKind) valid() bool { return k >= 0 && int(k) < len(kindInfo) }

func (k CommandKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
	return kindInfo[k].name
}

// Token returns the literal call name written by the shim, e.g. "PTOpen".
// None has no token.
func (k CommandKind) Token() string {
	if !k.valid() {
		return ""
	}
	return kindInfo[k].token
}

// ParseKind resolves a kind from its name or its token (case-insensitive).
func ParseKind(s string) (CommandKind, bool) {
	s = strings.TrimSpace(s)
	for i, info := range kindInfo {
		if strings.EqualFold(s, info.name) || (info.token != "" && strings.EqualFold(s, info.token)) {
			return CommandKind(i), true
		}
	}
	return None, false
}

func (k CommandKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *CommandKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, ok := ParseKind(s)
	if !ok {
		return fmt.Errorf("unknown command kind %q", s)
	}
	*k = kind
	return nil
}

// Classify returns the first kind, in declaration order, whose token is a
// substring of text. It returns None when no token is present.
func Classify(text string) CommandKind {
	for i, info := range kindInfo {
		if info.token == "" {
			continue
		}
		if strings.Contains(text, info.token) {
			return CommandKind(i)
		}
	}
	return None
}
