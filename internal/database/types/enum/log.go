package enum

// LogKind distinguishes entries of the moderation audit log.
//
//go:generate go tool enumer -type=LogKind -trimprefix=LogKind
type LogKind int

const (
	// LogKindReport is an actioned violation reported to moderators.
	LogKindReport LogKind = iota
	// LogKindAlert is a system alert raised when automation degrades.
	LogKindAlert
	// LogKindReset is an administrative strike reset.
	LogKindReset
)
