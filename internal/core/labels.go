// Package core defines core types.
package core

// Labels represents key-value metadata attached by parsers.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelSMB2Command   = "smb2.command"
	LabelSMB2Status    = "smb2.status"     // NT status / channel sequence (hex, 0xXXXXXXXX)
	LabelSMB2MessageID = "smb2.message_id" // decimal
	LabelSMB2SessionID = "smb2.session_id" // hex, 0xXXXXXXXXXXXXXXXX
	LabelSMB2TreeID    = "smb2.tree_id"    // decimal
	LabelSMB2Flags     = "smb2.flags"      // names joined by '|'
	LabelSMB2Response  = "smb2.response"   // "true"/"false"
	LabelSMB2Chained   = "smb2.chained"    // non-zero chain offset ("true"/"false")
	LabelSMB2Credits   = "smb2.credits"    // credit request/response

	LabelTCPFlags = "tcp.flags"

	// Set when the L3/L4 summary could not be decoded; IP and Transport stay zero.
	LabelDescribeError = "describe.error"
)
