package logparser

import (
	"regexp"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/rs/zerolog/log"
)

// dateLayout parses the timestamps matched by datePattern
const dateLayout = "2006-01-02 15:04:05 MST"

var datePattern = regexp.MustCompile(`(\d\d\d\d-\d\d-\d\d \d\d:\d\d:\d\d UTC)`)

// Entry is one timestamp and the text that follows it
type Entry struct {
	Date string
	Text string
}

// pieces splits content around every timestamp match, keeping the matches.
// The result alternates text and timestamps: [text, ts, text, ts, text...]
func pieces(content string) []string {
	matches := datePattern.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return []string{content}
	}

	result := make([]string, 0, 2*len(matches)+1)
	prev := 0
	for _, m := range matches {
		result = append(result, content[prev:m[0]], content[m[0]:m[1]])
		prev = m[1]
	}
	return append(result, content[prev:])
}

// Split cuts a downloaded log portion into timestamped entries.
// Text before the first timestamp is dropped; content without a usable
// timestamp alternation produces no entries.
func Split(content string) []Entry {
	fields := pieces(content)
	if len(fields) <= 1 {
		return nil
	}

	var start int
	switch {
	case isDate(fields[0]) && len(fields)%2 == 0:
		start = 0
	case isDate(fields[1]) && len(fields)%2 == 1:
		start = 1
	default:
		return nil
	}

	entries := make([]Entry, 0, (len(fields)-start)/2)
	for i := start; i+1 < len(fields); i += 2 {
		entries = append(entries, Entry{Date: fields[i], Text: fields[i+1]})
	}
	return entries
}

// Records splits content and builds log records for the given file
func Records(instanceID, fileName, content string) []*domain.LogRecord {
	entries := Split(content)
	records := make([]*domain.LogRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, &domain.LogRecord{
			InstanceID: instanceID,
			FileName:   fileName,
			Date:       e.Date,
			Timestamp:  ParseDate(e.Date),
			Data:       e.Text,
		})
	}
	return records
}

// ParseDate parses a matched timestamp. Returns zero time if it cannot be parsed.
func ParseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		log.Debug().Err(err).Str("date", s).Msg("Failed to parse log timestamp")
		return time.Time{}
	}
	return t.UTC()
}

func isDate(s string) bool {
	loc := datePattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}
