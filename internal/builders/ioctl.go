package builders

import (
	"strconv"

	"passthru_parser/internal/patterns"
)

// PTIoctl(ChannelID, IoctlID, pInput, pOutput)
var ioctlFields = table(
	callFields(patterns.IoctlCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.IoctlChannelID),
		{Name: "Ioctl Type", Pattern: patterns.IoctlID},
		{Name: "Input Pointer", Pattern: patterns.IoctlInputPtr},
		{Name: "Output Pointer", Pattern: patterns.IoctlOutputPtr},
	},
	statusFields,
)

// ioctlElements extracts NAME = value parameter lines (GET_CONFIG/SET_CONFIG).
var ioctlElements = &ElementSpec{
	Pattern: patterns.IoctlParam,
	Label: func(_ []string, i int) string {
		return "Param[" + strconv.Itoa(i) + "]"
	},
	Properties: []PropertySpec{
		{Name: "Parameter", Group: 1},
		{Name: "Value", Group: 2},
	},
}
