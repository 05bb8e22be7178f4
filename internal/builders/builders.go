package builders

import (
	"passthru_parser/internal/logging"
	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
	"passthru_parser/internal/registry"
)

// genericFields is used for unclassified segments and any kind without a
// dedicated table: the call line plus the time/status pair.
var genericFields = []FieldSpec{
	{Name: FieldCommandLine, Pattern: patterns.CallLine},
	{Name: FieldTimeIssued, Pattern: patterns.TimeIssued},
	{Name: FieldCallResult, Pattern: patterns.CallResult, Marker: StatusOK},
}

// dedicated lists every kind-specific builder.
var dedicated = []struct {
	name     string
	kind     passthru.CommandKind
	fields   []FieldSpec
	elements *ElementSpec
}{
	{"open", passthru.Open, openFields, nil},
	{"close", passthru.Close, closeFields, nil},
	{"connect", passthru.Connect, connectFields, nil},
	{"disconnect", passthru.Disconnect, disconnectFields, nil},
	{"read_msgs", passthru.ReadMessages, readFields, messageElements},
	{"write_msgs", passthru.WriteMessages, writeFields, messageElements},
	{"start_msg_filter", passthru.StartMessageFilter, startFilterFields, filterElements},
	{"stop_msg_filter", passthru.StopMessageFilter, stopFilterFields, nil},
	{"ioctl", passthru.Ioctl, ioctlFields, ioctlElements},
}

// NewGeneric creates the catch-all builder.
func NewGeneric(reg *patterns.Registry, log logging.Logger) (*Builder, error) {
	return NewBuilder("generic", passthru.None, reg, genericFields, nil, log)
}

// NewRegistry creates a builder registry with every dedicated builder and the
// generic catch-all registered.
func NewRegistry(reg *patterns.Registry, log logging.Logger) (*registry.Registry, error) {
	r := registry.New()

	for _, d := range dedicated {
		b, err := NewBuilder(d.name, d.kind, reg, d.fields, d.elements, log)
		if err != nil {
			return nil, err
		}
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}

	generic, err := NewGeneric(reg, log)
	if err != nil {
		return nil, err
	}
	r.RegisterCatchAll(generic)

	return r, nil
}
