package models

// OperationKind tags which metered operation produced a usage event.
type OperationKind string

const (
	OpGenerate OperationKind = "generate"
	OpExtract  OperationKind = "extract"
	OpReadText OperationKind = "read_text"
	OpStream   OperationKind = "stream"

	// OpUnknown is the decode fallback for kinds written by a newer version
	// of the gateway than the one reading them.
	OpUnknown OperationKind = "unknown"
)

// ParseOperationKind maps a stored tag to a kind. Unrecognized tags decode to
// OpUnknown so old readers keep working against newer ledgers; ok is false in
// that case so callers can log the value they saw.
func ParseOperationKind(s string) (kind OperationKind, ok bool) {
	switch OperationKind(s) {
	case OpGenerate, OpExtract, OpReadText, OpStream:
		return OperationKind(s), true
	default:
		return OpUnknown, false
	}
}
