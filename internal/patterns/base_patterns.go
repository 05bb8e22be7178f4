// Package patterns provides the pattern registry used to pull field values out
// of PassThru log segments.
// This file contains grok-style base patterns for use with the Registry.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in definitions using {PATTERN_NAME} syntax.
var BasePatterns = map[string]string{
	// Timestamps written by the shim, seconds since load (e.g., 1.234s).
	"TIME": `\d+\.\d+s`,

	// Call direction glyph after the timestamp: ++ entry, -- exit, !! error, ** note.
	"GLYPH": `(?:\+\+|--|!!|\*\*)`,

	// Numbers.
	"HEX": `0x[0-9A-Fa-f]+`,
	"INT": `-?\d+`,

	// Status code and name, e.g. 0:STATUS_NOERROR or 8:ERR_INVALID_CHANNEL_ID.
	"STATUS": `-?\d+:[A-Z][A-Z0-9_]*`,

	// Symbolic names: protocols, filter types, ioctl and parameter ids.
	"IDENT": `[A-Za-z0-9_]+`,

	// A single call argument up to the next comma or closing paren.
	"ARG": `[^,\)\n]*`,

	// Space separated hex bytes, e.g. 00 00 07 E8 01 0C.
	"DATA": `[0-9A-Fa-f]{2}(?:[ \t]+[0-9A-Fa-f]{2})*`,

	// Flag word attached to a message (RxStatus or TxFlags).
	"MSGFLAGS": `(?:RxS|TxF)=0x[0-9A-Fa-f]+`,
}
