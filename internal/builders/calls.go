package builders

import "passthru_parser/internal/patterns"

// PTOpen(name, pDeviceID)
var openFields = table(
	callFields(patterns.OpenCommand),
	[]FieldSpec{
		{Name: "Device Name", Pattern: patterns.OpenName},
		{Name: "Device Pointer", Pattern: patterns.OpenDevicePtr},
		idField(FieldDeviceID, patterns.OpenDeviceID),
	},
	statusFields,
)

// PTClose(DeviceID)
var closeFields = table(
	callFields(patterns.CloseCommand),
	[]FieldSpec{
		idField(FieldDeviceID, patterns.CloseDeviceID),
	},
	statusFields,
)

// PTConnect(DeviceID, ProtocolID, Flags, BaudRate, pChannelID)
var connectFields = table(
	callFields(patterns.ConnectCommand),
	[]FieldSpec{
		idField(FieldDeviceID, patterns.ConnectDeviceID),
		{Name: "Protocol ID", Pattern: patterns.ConnectProtocol},
		{Name: "Connect Flags", Pattern: patterns.ConnectFlags},
		{Name: "Baud Rate", Pattern: patterns.ConnectBaudRate},
		{Name: "Channel Pointer", Pattern: patterns.ConnectChannelPtr},
		idField(FieldChannelID, patterns.ConnectChannelID),
	},
	statusFields,
)

// PTDisconnect(ChannelID)
var disconnectFields = table(
	callFields(patterns.DisconnectCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.DisconnectChannelID),
	},
	statusFields,
)
