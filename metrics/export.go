package metrics

import (
	"encoding/json"
	"io"
)

// flatRecord is the export row shape consumed by downstream plotting
// tools. Field names are part of the export contract.
type flatRecord struct {
	Episode              int64   `json:"episode"`
	RewardScore          float64 `json:"reward_score"`
	Trial                int64   `json:"trial"`
	CompletionPercentage float64 `json:"completion_percentage"`
	ElapsedTime          float64 `json:"elapsed_time"`
	Source               Source  `json:"source"`
}

// Export serializes records as an ordered JSON list of flat key/value
// rows.
func Export(w io.Writer, records []Record) error {
	rows := make([]flatRecord, len(records))
	for i, r := range records {
		rows[i] = flatRecord{
			Episode:              r.Episode,
			RewardScore:          r.RewardScore,
			Trial:                r.Trial,
			CompletionPercentage: r.CompletionPercentage,
			ElapsedTime:          r.ElapsedTime,
			Source:               r.Source,
		}
	}

	enc := json.NewEncoder(w)

	return enc.Encode(rows)
}
