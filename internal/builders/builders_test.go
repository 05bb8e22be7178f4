package builders

import (
	"errors"
	"testing"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
	"passthru_parser/internal/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := patterns.Default()
	if err != nil {
		t.Fatalf("patterns.Default() error = %v", err)
	}
	r, err := NewRegistry(reg, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func build(t *testing.T, r *registry.Registry, text string) *passthru.Expression {
	t.Helper()
	_, expr, err := r.Dispatch(passthru.Segment{Text: text})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	return expr
}

func wantField(t *testing.T, e *passthru.Expression, name, value string, state passthru.ValidationState) {
	t.Helper()
	f, ok := e.Field(name)
	if !ok {
		t.Errorf("field %q missing", name)
		return
	}
	if f.Value != value {
		t.Errorf("%s = %q, want %q", name, f.Value, value)
	}
	if f.State != state {
		t.Errorf("%s state = %v, want %v", name, f.State, state)
	}
}

func TestEveryKindCovered(t *testing.T) {
	r := newRegistry(t)
	if got := r.Uncovered(); len(got) != 0 {
		t.Errorf("kinds without a dedicated builder: %v", got)
	}
}

func TestOpen(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, "1.234s ++ PTOpen(\"device\", 0xFF) \n1.235s 0:STATUS_NOERROR")

	if e.Kind != passthru.Open {
		t.Fatalf("kind = %v, want Open", e.Kind)
	}
	if len(e.Fields) != 7 {
		t.Errorf("got %d fields, want 7", len(e.Fields))
	}
	wantField(t, e, FieldCommandLine, `1.234s ++ PTOpen("device", 0xFF)`, passthru.Valid)
	wantField(t, e, FieldTimeIssued, "1.234s", passthru.Valid)
	wantField(t, e, "Device Name", `"device"`, passthru.Valid)
	wantField(t, e, "Device Pointer", "0xFF", passthru.Valid)
	wantField(t, e, FieldDeviceID, passthru.Unresolved, passthru.Invalid)
	wantField(t, e, FieldTimeCompleted, "1.235s", passthru.Valid)
	wantField(t, e, FieldReturnStatus, "0:STATUS_NOERROR", passthru.Valid)
}

func TestConnect(t *testing.T) {
	r := newRegistry(t)

	t.Run("success", func(t *testing.T) {
		e := build(t, r, `1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)
       returning ChannelID: 2
1.017s   0:STATUS_NOERROR`)
		if len(e.Fields) != 10 {
			t.Errorf("got %d fields, want 10", len(e.Fields))
		}
		wantField(t, e, FieldDeviceID, "1", passthru.Valid)
		wantField(t, e, "Protocol ID", "ISO15765", passthru.Valid)
		wantField(t, e, "Baud Rate", "500000", passthru.Valid)
		wantField(t, e, FieldChannelID, "2", passthru.Valid)
		if !e.Valid() {
			t.Errorf("expected a fully valid expression, missing %v", e.MissingFields())
		}
	})

	t.Run("missing channel id is not fatal", func(t *testing.T) {
		e := build(t, r, `1.010s ++ PTConnect(1, ISO15765, 0x00000000, 500000, 0x0019FBEC)
1.017s   8:ERR_INVALID_DEVICE_ID`)
		wantField(t, e, FieldChannelID, passthru.Unresolved, passthru.Invalid)
		wantField(t, e, FieldReturnStatus, "8:ERR_INVALID_DEVICE_ID", passthru.Invalid)
	})

	t.Run("sentinel channel id", func(t *testing.T) {
		e := build(t, r, `1.010s ++ PTConnect(1, CAN, 0x00000800, 500000, 0x0019FBEC)
       returning ChannelID: -1
1.017s   0:STATUS_NOERROR`)
		wantField(t, e, FieldChannelID, "-1", passthru.Invalid)
	})

	t.Run("malformed call line is fatal", func(t *testing.T) {
		_, _, err := r.Dispatch(passthru.Segment{Text: "1.010s ++ PTConnect(garbage\n1.017s   0:STATUS_NOERROR"})
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Fatalf("expected *ExtractionError, got %v", err)
		}
		if extractErr.Field != FieldCommandLine || extractErr.Kind != passthru.Connect {
			t.Errorf("unexpected error detail: %+v", extractErr)
		}
		if !errors.Is(err, patterns.ErrNoMatch) {
			t.Errorf("expected wrapped ErrNoMatch, got %v", err)
		}
		if extractErr.Line != "1.010s ++ PTConnect(garbage" {
			t.Errorf("error line = %q", extractErr.Line)
		}
	})
}

func TestCloseAndDisconnect(t *testing.T) {
	r := newRegistry(t)

	e := build(t, r, "9.000s ++ PTDisconnect(2)\n9.001s   0:STATUS_NOERROR")
	if e.Kind != passthru.Disconnect {
		t.Fatalf("kind = %v, want Disconnect", e.Kind)
	}
	wantField(t, e, FieldChannelID, "2", passthru.Valid)

	e = build(t, r, "9.100s ++ PTClose(1)\n9.101s   0:STATUS_NOERROR")
	if e.Kind != passthru.Close {
		t.Fatalf("kind = %v, want Close", e.Kind)
	}
	wantField(t, e, FieldDeviceID, "1", passthru.Valid)
}

func TestReadMessages(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, `1.500s ++ PTReadMsgs(2, 0x0019F9A8, 0x0019F9A4[2], 100)
  Msg[ 0] 1.510s. ISO15765. Actual data 12 bytes. RxS=0x00000000
          \__ 00 00 07 E8 06 41 00 BE 3F A8 13
  Msg[ 1] 1.511s. ISO15765. Actual data 5 bytes. RxS=0x00000009
          \__ 00 00 07 E8 01
  2 of 2 messages read
1.512s   0:STATUS_NOERROR`)

	if e.Kind != passthru.ReadMessages {
		t.Fatalf("kind = %v, want ReadMessages", e.Kind)
	}
	wantField(t, e, FieldChannelID, "2", passthru.Valid)
	wantField(t, e, "Messages Requested", "2", passthru.Valid)
	wantField(t, e, "Messages Read", "2", passthru.Valid)
	wantField(t, e, "Timeout", "100", passthru.Valid)

	if len(e.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(e.Elements))
	}
	el := e.Elements[1]
	if el.Label != "Msg[1]" {
		t.Errorf("label = %q, want Msg[1]", el.Label)
	}
	want := map[string]string{
		"Timestamp":   "1.511s",
		"Protocol":    "ISO15765",
		"Data Length": "5",
		"Flags":       "RxS=0x00000009",
		"Data":        "00 00 07 E8 01",
	}
	for name, value := range want {
		if got, ok := el.Get(name); !ok || got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestWriteMessages(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, `1.400s ++ PTWriteMsgs(2, 0x0019F9A8, 0x0019F9A4[1], 100)
  Msg[ 0] ISO15765. 12 bytes. TxF=0x00000040
          \__ 00 00 07 E0 02 01 00 00 00 00 00 00
  1 of 1 messages sent
1.402s   0:STATUS_NOERROR`)

	if e.Kind != passthru.WriteMessages {
		t.Fatalf("kind = %v, want WriteMessages", e.Kind)
	}
	wantField(t, e, "Messages Sent", "1", passthru.Valid)
	if len(e.Elements) != 1 {
		t.Fatalf("got %d elements, want 1", len(e.Elements))
	}
	if _, ok := e.Elements[0].Get("Timestamp"); ok {
		t.Error("write messages carry no timestamp property")
	}
	if got, _ := e.Elements[0].Get("Flags"); got != "TxF=0x00000040" {
		t.Errorf("Flags = %q", got)
	}
}

func TestStartMessageFilter(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, `1.100s ++ PTStartMsgFilter(2, FLOW_CONTROL_FILTER, 0x0019F9A8, 0x0019F9B0, 0x0019F9B8, 0x0019F9C4)
  Mask[0] ISO15765. 4 bytes. TxF=0x00000040
          \__ FF FF FF FF
  Pattern[0] ISO15765. 4 bytes. TxF=0x00000040
          \__ 00 00 07 E8
  FlowControl[0] ISO15765. 4 bytes. TxF=0x00000040
          \__ 00 00 07 E0
  returning FilterID: 0
1.102s   0:STATUS_NOERROR`)

	if e.Kind != passthru.StartMessageFilter {
		t.Fatalf("kind = %v, want StartMessageFilter", e.Kind)
	}
	wantField(t, e, "Filter Type", "FLOW_CONTROL_FILTER", passthru.Valid)
	wantField(t, e, FieldFilterID, "0", passthru.Valid)

	wantLabels := []string{"Mask[0]", "Pattern[0]", "FlowControl[0]"}
	if len(e.Elements) != len(wantLabels) {
		t.Fatalf("got %d elements, want %d", len(e.Elements), len(wantLabels))
	}
	for i, label := range wantLabels {
		if e.Elements[i].Label != label {
			t.Errorf("element %d label = %q, want %q", i, e.Elements[i].Label, label)
		}
	}
	if got, _ := e.Elements[2].Get("Data"); got != "00 00 07 E0" {
		t.Errorf("flow control data = %q", got)
	}
}

func TestStopMessageFilter(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, "3.100s ++ PTStopMsgFilter(2, 0)\n3.101s   0:STATUS_NOERROR")
	wantField(t, e, FieldChannelID, "2", passthru.Valid)
	wantField(t, e, FieldFilterID, "0", passthru.Valid)
}

func TestIoctl(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, `1.020s ++ PTIoctl(2, SET_CONFIG, 0x0019FAE8, 0x00000000)
  2 parameters:
    DATA_RATE = 500000
    LOOPBACK = 0
1.021s   0:STATUS_NOERROR`)

	wantField(t, e, "Ioctl Type", "SET_CONFIG", passthru.Valid)
	if len(e.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(e.Elements))
	}
	if e.Elements[1].Label != "Param[1]" {
		t.Errorf("label = %q", e.Elements[1].Label)
	}
	if name, _ := e.Elements[1].Get("Parameter"); name != "LOOPBACK" {
		t.Errorf("Parameter = %q", name)
	}
	if v, _ := e.Elements[0].Get("Value"); v != "500000" {
		t.Errorf("Value = %q", v)
	}
}

func TestGeneric(t *testing.T) {
	r := newRegistry(t)
	e := build(t, r, "1.000s ++ PTReadVersion(1, 0x1, 0x2, 0x3)\n1.001s   0:STATUS_NOERROR")

	if e.Kind != passthru.None {
		t.Fatalf("kind = %v, want None", e.Kind)
	}
	wantField(t, e, FieldCommandLine, "1.000s ++ PTReadVersion(1, 0x1, 0x2, 0x3)", passthru.Valid)
	wantField(t, e, FieldCallResult, "1.001s 0:STATUS_NOERROR", passthru.Valid)

	// Nothing recognisable at all still yields a record.
	e = build(t, r, "complete garbage")
	wantField(t, e, FieldCommandLine, passthru.Unresolved, passthru.Invalid)
}

func TestNewBuilderUnknownPattern(t *testing.T) {
	reg, err := patterns.Default()
	if err != nil {
		t.Fatalf("patterns.Default() error = %v", err)
	}
	_, err = NewBuilder("bad", passthru.Open, reg, []FieldSpec{{Name: "x", Pattern: "NoSuchPattern"}}, nil, nil)
	if !errors.Is(err, patterns.ErrUnknownPattern) {
		t.Errorf("NewBuilder() error = %v, want ErrUnknownPattern", err)
	}
}
