package enum

// ActionKind represents the enforcement applied for a confirmed violation.
//
//go:generate go tool enumer -type=ActionKind -trimprefix=ActionKind
type ActionKind int

const (
	// ActionKindIgnore records the strike without contacting the user.
	ActionKindIgnore ActionKind = iota
	// ActionKindWarn sends the user a warning by direct message.
	ActionKindWarn
	// ActionKindTimeout restricts the user from communicating for a duration.
	ActionKindTimeout
)
