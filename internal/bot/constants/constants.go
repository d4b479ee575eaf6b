package constants

const (
	// Commands.
	CheckCommandName   = "check"
	HistoryCommandName = "history"
	StatsCommandName   = "stats"
	ResetCommandName   = "reset"

	// Command options.
	TextOptionName = "text"
	UserOptionName = "user"

	// Common.
	NotApplicable     = "N/A"
	DefaultEmbedColor = 0x312D2B
	ToxicEmbedColor   = 0xED4245
	CleanEmbedColor   = 0x57F287

	// History.
	HistoryEntriesShown = 10
)
