package builders

import "passthru_parser/internal/patterns"

// PTStartMsgFilter(ChannelID, FilterType, pMask, pPattern, pFlowControl, pFilterID)
var startFilterFields = table(
	callFields(patterns.StartFilterCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.StartFilterChannelID),
		{Name: "Filter Type", Pattern: patterns.StartFilterType},
		{Name: "Mask Pointer", Pattern: patterns.StartFilterMaskPtr},
		{Name: "Pattern Pointer", Pattern: patterns.StartFilterPatternPtr},
		{Name: "Flow Control Pointer", Pattern: patterns.StartFilterFlowPtr},
		idField(FieldFilterID, patterns.StartFilterID),
	},
	statusFields,
)

// PTStopMsgFilter(ChannelID, FilterID)
var stopFilterFields = table(
	callFields(patterns.StopFilterCommand),
	[]FieldSpec{
		idField(FieldChannelID, patterns.StopFilterChannelID),
		idField(FieldFilterID, patterns.StopFilterID),
	},
	statusFields,
)

// filterElements extracts the mask, pattern and flow control blocks echoed by
// PTStartMsgFilter. Groups: role, index, protocol, length, flags, data.
var filterElements = &ElementSpec{
	Pattern: patterns.FilterBlock,
	Label: func(g []string, _ int) string {
		return g[1] + "[" + g[2] + "]"
	},
	Properties: []PropertySpec{
		{Name: "Protocol", Group: 3},
		{Name: "Data Length", Group: 4},
		{Name: "Flags", Group: 5},
		{Name: "Data", Group: 6},
	},
}
