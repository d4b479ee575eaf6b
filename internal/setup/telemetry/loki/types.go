package loki

import "time"

// pushRequest represents the JSON payload sent to Loki.
type pushRequest struct {
	Streams []stream `json:"streams"`
}

// stream represents a log stream with labels and values.
type stream struct {
	Stream map[string]string `json:"stream"`
	Values []streamValue     `json:"values"`
}

// streamValue is a tuple of [timestamp, log_line].
type streamValue []string

// logEntry is an encoded log line waiting to be pushed.
type logEntry struct {
	timestamp time.Time
	line      string
}
