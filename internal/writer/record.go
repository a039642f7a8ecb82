package writer

import (
	"encoding/json"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
)

// jsonRecord is the emitted wire form of a record
type jsonRecord struct {
	LogData    string `json:"logdata"`
	Date       string `json:"date"`
	InstanceID string `json:"awsDbInstanceId"`
	FileName   string `json:"awsRdsLogFileName"`
}

func encodeRecord(record *domain.LogRecord) ([]byte, error) {
	return json.Marshal(jsonRecord{
		LogData:    record.Data,
		Date:       record.Date,
		InstanceID: record.InstanceID,
		FileName:   record.FileName,
	})
}
