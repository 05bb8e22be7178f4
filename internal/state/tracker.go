// Package state tracks device, channel and filter handles across the calls of
// one log and reports lifecycle problems: handles used before they were
// opened, handles reissued while still open, and handles never released.
package state

import (
	"fmt"
	"sort"
	"sync"

	"passthru_parser/internal/builders"
	"passthru_parser/internal/passthru"
)

// IssueKind classifies a lifecycle problem.
type IssueKind string

const (
	UnknownDevice   IssueKind = "unknown_device"
	UnknownChannel  IssueKind = "unknown_channel"
	UnknownFilter   IssueKind = "unknown_filter"
	DuplicateHandle IssueKind = "duplicate_handle"
	LeakedHandle    IssueKind = "leaked_handle"
)

// Issue is one lifecycle problem. Index is the expression position in the
// set, or -1 for handles still open at the end of the log.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Index   int       `json:"index"`
	Line    string    `json:"line,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("end of log: %s", i.Message)
	}
	return fmt.Sprintf("#%d %s: %s", i.Index+1, i.Kind, i.Message)
}

// Device is an open device handle.
type Device struct {
	ID       string          `json:"id"`
	OpenedAt int             `json:"opened_at"`
	Channels map[string]bool `json:"channels"`
}

// Channel is an open channel handle.
type Channel struct {
	ID       string          `json:"id"`
	Device   string          `json:"device"`
	OpenedAt int             `json:"opened_at"`
	Filters  map[string]bool `json:"filters"`
}

// Tracker follows handles through a sequence of expressions.
type Tracker struct {
	mu sync.Mutex

	devices  map[string]*Device
	channels map[string]*Channel
	issues   []Issue

	// Callback for issue notifications.
	onIssue func(Issue)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		devices:  make(map[string]*Device),
		channels: make(map[string]*Channel),
	}
}

// OnIssue sets a callback invoked for every issue as it is found.
func (t *Tracker) OnIssue(fn func(Issue)) {
	t.onIssue = fn
}

// Check runs a fresh tracker over a whole set and returns every issue.
func Check(set *passthru.ExpressionSet) []Issue {
	t := NewTracker()
	for i, e := range set.Expressions {
		t.Observe(i, e)
	}
	return t.Finish()
}

// Observe applies expression e, found at position idx, to the tracked state.
// Failed calls are checked against the state but never change it.
func (t *Tracker) Observe(idx int, e *passthru.Expression) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok := callSucceeded(e)
	dev := fieldValue(e, builders.FieldDeviceID)
	ch := fieldValue(e, builders.FieldChannelID)
	filter := fieldValue(e, builders.FieldFilterID)

	switch e.Kind {
	case passthru.Open:
		if !ok || dev == "" {
			return
		}
		if _, exists := t.devices[dev]; exists {
			t.report(idx, e, DuplicateHandle, "device %s opened again while still open", dev)
		}
		t.devices[dev] = &Device{ID: dev, OpenedAt: idx, Channels: make(map[string]bool)}

	case passthru.Close:
		if dev == "" {
			return
		}
		d, exists := t.devices[dev]
		if !exists {
			t.report(idx, e, UnknownDevice, "close of device %s that is not open", dev)
			return
		}
		if !ok {
			return
		}
		for _, id := range sortedKeys(d.Channels) {
			t.report(idx, e, LeakedHandle, "channel %s still connected when device %s closed", id, dev)
			delete(t.channels, id)
		}
		delete(t.devices, dev)

	case passthru.Connect:
		d, exists := t.devices[dev]
		if dev != "" && !exists {
			t.report(idx, e, UnknownDevice, "connect on device %s that is not open", dev)
		}
		if !ok || ch == "" {
			return
		}
		if _, dup := t.channels[ch]; dup {
			t.report(idx, e, DuplicateHandle, "channel %s connected again while still connected", ch)
		}
		t.channels[ch] = &Channel{ID: ch, Device: dev, OpenedAt: idx, Filters: make(map[string]bool)}
		if d != nil {
			d.Channels[ch] = true
		}

	case passthru.Disconnect:
		c := t.channel(idx, e, ch)
		if c == nil || !ok {
			return
		}
		if d := t.devices[c.Device]; d != nil {
			delete(d.Channels, ch)
		}
		delete(t.channels, ch)

	case passthru.ReadMessages, passthru.WriteMessages:
		t.channel(idx, e, ch)

	case passthru.Ioctl:
		// Some ioctls (READ_VBATT) address the device instead of a channel.
		if _, isDevice := t.devices[ch]; !isDevice {
			t.channel(idx, e, ch)
		}

	case passthru.StartMessageFilter:
		c := t.channel(idx, e, ch)
		if c == nil || !ok || filter == "" {
			return
		}
		if c.Filters[filter] {
			t.report(idx, e, DuplicateHandle, "filter %s started again on channel %s", filter, ch)
		}
		c.Filters[filter] = true

	case passthru.StopMessageFilter:
		c := t.channel(idx, e, ch)
		if c == nil || filter == "" {
			return
		}
		if !c.Filters[filter] {
			t.report(idx, e, UnknownFilter, "stop of filter %s not running on channel %s", filter, ch)
			return
		}
		if ok {
			delete(c.Filters, filter)
		}
	}
}

// Finish reports every handle still open and returns all issues found.
func (t *Tracker) Finish() []Issue {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range sortedKeys(t.channels) {
		c := t.channels[id]
		for _, f := range sortedKeys(c.Filters) {
			t.report(-1, nil, LeakedHandle, "filter %s on channel %s never stopped", f, id)
		}
		t.report(-1, nil, LeakedHandle, "channel %s never disconnected", id)
	}
	for _, id := range sortedKeys(t.devices) {
		t.report(-1, nil, LeakedHandle, "device %s never closed", id)
	}

	out := make([]Issue, len(t.issues))
	copy(out, t.issues)
	return out
}

// OpenDevices returns the IDs of devices currently open.
func (t *Tracker) OpenDevices() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.devices)
}

// OpenChannels returns the IDs of channels currently connected.
func (t *Tracker) OpenChannels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.channels)
}

// channel returns the open channel ch, reporting an issue when it is unknown.
// An unresolved id yields nil without an issue.
func (t *Tracker) channel(idx int, e *passthru.Expression, ch string) *Channel {
	if ch == "" {
		return nil
	}
	c, exists := t.channels[ch]
	if !exists {
		t.report(idx, e, UnknownChannel, "%s on channel %s that is not connected", e.Kind.Token(), ch)
		return nil
	}
	return c
}

// report must be called with mu held.
func (t *Tracker) report(idx int, e *passthru.Expression, kind IssueKind, format string, args ...any) {
	issue := Issue{Kind: kind, Index: idx, Message: fmt.Sprintf(format, args...)}
	if e != nil {
		issue.Line = e.Segment.FirstLine()
	}
	t.issues = append(t.issues, issue)
	if t.onIssue != nil {
		t.onIssue(issue)
	}
}

func callSucceeded(e *passthru.Expression) bool {
	f, ok := e.Field(builders.FieldReturnStatus)
	return ok && f.State == passthru.Valid
}

// fieldValue returns a resolved identifier, or "" when the field is absent,
// unresolved or the invalid sentinel.
func fieldValue(e *passthru.Expression, name string) string {
	f, ok := e.Field(name)
	if !ok || !f.Resolved() || f.State != passthru.Valid {
		return ""
	}
	return f.Value
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
