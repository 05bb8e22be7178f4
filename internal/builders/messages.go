package builders

import "passthru_parser/internal/patterns"

// PTReadMsgs(ChannelID, pMsg, pNumMsgs[n], Timeout)
var readFields = table(
	callFields(patterns.ReadCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.ReadChannelID),
		{Name: "Message Pointer", Pattern: patterns.ReadMsgPtr},
		{Name: "Messages Requested", Pattern: patterns.ReadRequested},
		{Name: "Timeout", Pattern: patterns.ReadTimeout},
		{Name: "Messages Read", Pattern: patterns.ReadCount},
	},
	statusFields,
)

// PTWriteMsgs(ChannelID, pMsg, pNumMsgs[n], Timeout)
var writeFields = table(
	callFields(patterns.WriteCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.WriteChannelID),
		{Name: "Message Pointer", Pattern: patterns.WriteMsgPtr},
		{Name: "Messages Requested", Pattern: patterns.WriteRequested},
		{Name: "Timeout", Pattern: patterns.WriteTimeout},
		{Name: "Messages Sent", Pattern: patterns.WriteCount},
	},
	statusFields,
)

// messageElements extracts each Msg[n] block of a read or write call.
// Groups: index, timestamp, protocol, length, flags, data.
var messageElements = &ElementSpec{
	Pattern: patterns.MessageBlock,
	Label: func(g []string, _ int) string {
		return "Msg[" + g[1] + "]"
	},
	Properties: []PropertySpec{
		{Name: "Timestamp", Group: 2},
		{Name: "Protocol", Group: 3},
		{Name: "Data Length", Group: 4},
		{Name: "Flags", Group: 5},
		{Name: "Data", Group: 6},
	},
}
