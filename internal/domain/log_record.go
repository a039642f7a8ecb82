package domain

import "time"

// LogRecord is a single timestamped entry cut out of a downloaded log portion
type LogRecord struct {
	InstanceID string
	FileName   string
	Date       string    // Timestamp exactly as it appears in the log
	Timestamp  time.Time // Date parsed as UTC
	Data       string    // Text following the timestamp up to the next one
}
