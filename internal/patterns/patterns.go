// Package patterns provides the pattern registry used to pull field values out
// of PassThru log segments.
package patterns

import (
	"sync"

	"passthru_parser/internal/passthru"
)

// Definition names shared by every command kind.
const (
	CallStart  = "CallStart"  // Timestamp + direction glyph opening a call.
	CallClose  = "CallClose"  // Timestamp + status code closing a call.
	CallLine   = "CallLine"   // Full first line of any call.
	TimeIssued = "TimeIssued" // Timestamp of the call-start marker.
	TimeDone   = "TimeDone"   // Timestamp of the status line.
	Status     = "Status"     // Status code and name.
	CallResult = "CallResult" // Time and status pair of the status line.
)

// Kind-specific definition names.
const (
	OpenCommand   = "OpenCommand"
	OpenName      = "OpenName"
	OpenDevicePtr = "OpenDevicePtr"
	OpenDeviceID  = "OpenDeviceID"

	CloseCommand  = "CloseCommand"
	CloseDeviceID = "CloseDeviceID"

	ConnectCommand    = "ConnectCommand"
	ConnectDeviceID   = "ConnectDeviceID"
	ConnectProtocol   = "ConnectProtocol"
	ConnectFlags      = "ConnectFlags"
	ConnectBaudRate   = "ConnectBaudRate"
	ConnectChannelPtr = "ConnectChannelPtr"
	ConnectChannelID  = "ConnectChannelID"

	DisconnectCommand   = "DisconnectCommand"
	DisconnectChannelID = "DisconnectChannelID"

	ReadCommand   = "ReadCommand"
	ReadChannelID = "ReadChannelID"
	ReadMsgPtr    = "ReadMsgPtr"
	ReadRequested = "ReadRequested"
	ReadTimeout   = "ReadTimeout"
	ReadCount     = "ReadCount"

	WriteCommand   = "WriteCommand"
	WriteChannelID = "WriteChannelID"
	WriteMsgPtr    = "WriteMsgPtr"
	WriteRequested = "WriteRequested"
	WriteTimeout   = "WriteTimeout"
	WriteCount     = "WriteCount"

	// MessageBlock matches one Msg[n] entry of a read or write call.
	MessageBlock = "MessageBlock"

	StartFilterCommand    = "StartFilterCommand"
	StartFilterChannelID  = "StartFilterChannelID"
	StartFilterType       = "StartFilterType"
	StartFilterMaskPtr    = "StartFilterMaskPtr"
	StartFilterPatternPtr = "StartFilterPatternPtr"
	StartFilterFlowPtr    = "StartFilterFlowPtr"
	StartFilterID         = "StartFilterID"

	// FilterBlock matches one Mask[n], Pattern[n] or FlowControl[n] entry.
	FilterBlock = "FilterBlock"

	StopFilterCommand   = "StopFilterCommand"
	StopFilterChannelID = "StopFilterChannelID"
	StopFilterID        = "StopFilterID"

	IoctlCommand   = "IoctlCommand"
	IoctlChannelID = "IoctlChannelID"
	IoctlID        = "IoctlID"
	IoctlInputPtr  = "IoctlInputPtr"
	IoctlOutputPtr = "IoctlOutputPtr"

	// IoctlParam matches one NAME = value parameter line.
	IoctlParam = "IoctlParam"
)

// Call signatures. Each capture group is one argument.
const (
	openCall        = `{TIME}[ \t]+{GLYPH}[ \t]+PTOpen\(({ARG}),[ \t]*({ARG})\)`
	closeCall       = `{TIME}[ \t]+{GLYPH}[ \t]+PTClose\(({ARG})\)`
	connectCall     = `{TIME}[ \t]+{GLYPH}[ \t]+PTConnect\(({ARG}),[ \t]*({ARG}),[ \t]*({ARG}),[ \t]*({ARG}),[ \t]*({ARG})\)`
	disconnectCall  = `{TIME}[ \t]+{GLYPH}[ \t]+PTDisconnect\(({ARG})\)`
	readCall        = `{TIME}[ \t]+{GLYPH}[ \t]+PTReadMsgs\(({ARG}),[ \t]*({ARG}),[ \t]*{HEX}\[({INT})\],[ \t]*({ARG})\)`
	writeCall       = `{TIME}[ \t]+{GLYPH}[ \t]+PTWriteMsgs\(({ARG}),[ \t]*({ARG}),[ \t]*{HEX}\[({INT})\],[ \t]*({ARG})\)`
	startFilterCall = `{TIME}[ \t]+{GLYPH}[ \t]+PTStartMsgFilter\(({ARG}),[ \t]*({IDENT}),[ \t]*({ARG}),[ \t]*({ARG}),[ \t]*({ARG}),[ \t]*({ARG})\)`
	stopFilterCall  = `{TIME}[ \t]+{GLYPH}[ \t]+PTStopMsgFilter\(({ARG}),[ \t]*({ARG})\)`
	ioctlCall       = `{TIME}[ \t]+{GLYPH}[ \t]+PTIoctl\(({ARG}),[ \t]*({IDENT}),[ \t]*({ARG}),[ \t]*({ARG})\)`
)

// Definitions is the fixed pattern table for PassThru logs.
var Definitions = []Definition{
	// Shared.
	{Name: CallStart, Pattern: `{TIME}[ \t]+{GLYPH}`},
	{Name: CallClose, Pattern: `(?m)^[ \t]*{TIME}[ \t]+{STATUS}`},
	{Name: CallLine, Pattern: `{TIME}[ \t]+{GLYPH}[ \t]+[^\n]*[^\s]`},
	{Name: TimeIssued, Pattern: `({TIME})[ \t]+{GLYPH}`, Groups: []int{1}},
	{Name: TimeDone, Pattern: `(?m)^[ \t]*({TIME})[ \t]+{STATUS}`, Groups: []int{1}},
	{Name: Status, Pattern: `(?m)^[ \t]*{TIME}[ \t]+({STATUS})`, Groups: []int{1}},
	{Name: CallResult, Pattern: `(?m)^[ \t]*({TIME})[ \t]+({STATUS})`, Groups: []int{1, 2}},

	// PTOpen(name, pDeviceID)
	{Name: OpenCommand, Kind: passthru.Open, Pattern: openCall},
	{Name: OpenName, Kind: passthru.Open, Pattern: openCall, Groups: []int{1}},
	{Name: OpenDevicePtr, Kind: passthru.Open, Pattern: openCall, Groups: []int{2}},
	{Name: OpenDeviceID, Kind: passthru.Open, Pattern: `returning DeviceID:[ \t]*({INT})`, Groups: []int{1}},

	// PTClose(DeviceID)
	{Name: CloseCommand, Kind: passthru.Close, Pattern: closeCall},
	{Name: CloseDeviceID, Kind: passthru.Close, Pattern: closeCall, Groups: []int{1}},

	// PTConnect(DeviceID, ProtocolID, Flags, BaudRate, pChannelID)
	{Name: ConnectCommand, Kind: passthru.Connect, Pattern: connectCall},
	{Name: ConnectDeviceID, Kind: passthru.Connect, Pattern: connectCall, Groups: []int{1}},
	{Name: ConnectProtocol, Kind: passthru.Connect, Pattern: connectCall, Groups: []int{2}},
	{Name: ConnectFlags, Kind: passthru.Connect, Pattern: connectCall, Groups: []int{3}},
	{Name: ConnectBaudRate, Kind: passthru.Connect, Pattern: connectCall, Groups: []int{4}},
	{Name: ConnectChannelPtr, Kind: passthru.Connect, Pattern: connectCall, Groups: []int{5}},
	{Name: ConnectChannelID, Kind: passthru.Connect, Pattern: `returning ChannelID:[ \t]*({INT})`, Groups: []int{1}},

	// PTDisconnect(ChannelID)
	{Name: DisconnectCommand, Kind: passthru.Disconnect, Pattern: disconnectCall},
	{Name: DisconnectChannelID, Kind: passthru.Disconnect, Pattern: disconnectCall, Groups: []int{1}},

	// PTReadMsgs(ChannelID, pMsg, pNumMsgs[n], Timeout)
	{Name: ReadCommand, Kind: passthru.ReadMessages, Pattern: readCall},
	{Name: ReadChannelID, Kind: passthru.ReadMessages, Pattern: readCall, Groups: []int{1}},
	{Name: ReadMsgPtr, Kind: passthru.ReadMessages, Pattern: readCall, Groups: []int{2}},
	{Name: ReadRequested, Kind: passthru.ReadMessages, Pattern: readCall, Groups: []int{3}},
	{Name: ReadTimeout, Kind: passthru.ReadMessages, Pattern: readCall, Groups: []int{4}},
	{Name: ReadCount, Kind: passthru.ReadMessages, Pattern: `(?m)^[ \t]*({INT})[ \t]+of[ \t]+{INT}[ \t]+messages?[ \t]+read`, Groups: []int{1}},
	// Groups: index, timestamp (reads only), protocol, length, flags, data.
	{Name: MessageBlock, Kind: passthru.ReadMessages, Pattern: `Msg\[[ \t]*({INT})\][ \t]+(?:({TIME})\.[ \t]+)?({IDENT})\.[ \t]+(?:Actual data[ \t]+)?({INT})[ \t]+bytes\.[ \t]+({MSGFLAGS})[ \t]*\n[ \t]*\\__[ \t]+({DATA})`},

	// PTWriteMsgs(ChannelID, pMsg, pNumMsgs[n], Timeout)
	{Name: WriteCommand, Kind: passthru.WriteMessages, Pattern: writeCall},
	{Name: WriteChannelID, Kind: passthru.WriteMessages, Pattern: writeCall, Groups: []int{1}},
	{Name: WriteMsgPtr, Kind: passthru.WriteMessages, Pattern: writeCall, Groups: []int{2}},
	{Name: WriteRequested, Kind: passthru.WriteMessages, Pattern: writeCall, Groups: []int{3}},
	{Name: WriteTimeout, Kind: passthru.WriteMessages, Pattern: writeCall, Groups: []int{4}},
	{Name: WriteCount, Kind: passthru.WriteMessages, Pattern: `(?m)^[ \t]*({INT})[ \t]+of[ \t]+{INT}[ \t]+messages?[ \t]+sent`, Groups: []int{1}},

	// PTStartMsgFilter(ChannelID, FilterType, pMask, pPattern, pFlowControl, pFilterID)
	{Name: StartFilterCommand, Kind: passthru.StartMessageFilter, Pattern: startFilterCall},
	{Name: StartFilterChannelID, Kind: passthru.StartMessageFilter, Pattern: startFilterCall, Groups: []int{1}},
	{Name: StartFilterType, Kind: passthru.StartMessageFilter, Pattern: startFilterCall, Groups: []int{2}},
	{Name: StartFilterMaskPtr, Kind: passthru.StartMessageFilter, Pattern: startFilterCall, Groups: []int{3}},
	{Name: StartFilterPatternPtr, Kind: passthru.StartMessageFilter, Pattern: startFilterCall, Groups: []int{4}},
	{Name: StartFilterFlowPtr, Kind: passthru.StartMessageFilter, Pattern: startFilterCall, Groups: []int{5}},
	{Name: StartFilterID, Kind: passthru.StartMessageFilter, Pattern: `returning FilterID:[ \t]*({INT})`, Groups: []int{1}},
	// Groups: role, index, protocol, length, flags, data.
	{Name: FilterBlock, Kind: passthru.StartMessageFilter, Pattern: `(Mask|Pattern|FlowControl)\[[ \t]*({INT})\][ \t]+({IDENT})\.[ \t]+({INT})[ \t]+bytes\.[ \t]+({MSGFLAGS})[ \t]*\n[ \t]*\\__[ \t]+({DATA})`},

	// PTStopMsgFilter(ChannelID, FilterID)
	{Name: StopFilterCommand, Kind: passthru.StopMessageFilter, Pattern: stopFilterCall},
	{Name: StopFilterChannelID, Kind: passthru.StopMessageFilter, Pattern: stopFilterCall, Groups: []int{1}},
	{Name: StopFilterID, Kind: passthru.StopMessageFilter, Pattern: stopFilterCall, Groups: []int{2}},

	// PTIoctl(ChannelID, IoctlID, pInput, pOutput)
	{Name: IoctlCommand, Kind: passthru.Ioctl, Pattern: ioctlCall},
	{Name: IoctlChannelID, Kind: passthru.Ioctl, Pattern: ioctlCall, Groups: []int{1}},
	{Name: IoctlID, Kind: passthru.Ioctl, Pattern: ioctlCall, Groups: []int{2}},
	{Name: IoctlInputPtr, Kind: passthru.Ioctl, Pattern: ioctlCall, Groups: []int{3}},
	{Name: IoctlOutputPtr, Kind: passthru.Ioctl, Pattern: ioctlCall, Groups: []int{4}},
	{Name: IoctlParam, Kind: passthru.Ioctl, Pattern: `(?m)^[ \t]+({IDENT})[ \t]*=[ \t]*(\S+)[ \t]*$`},
}

// Registry singleton.
var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
	defaultErr      error
)

// Default returns the compiled registry for Definitions. It is compiled once
// and shared by every caller.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(Definitions, nil)
		defaultErr = defaultRegistry.Compile()
	})
	return defaultRegistry, defaultErr
}
