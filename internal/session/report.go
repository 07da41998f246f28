package session

import (
	"encoding/json"
	"fmt"
	"time"
)

type Report struct {
	UUID       string `json:"uuid"`
	Output     string `json:"output"`
	Started    string `json:"started"`
	Ended      string `json:"ended,omitempty"`
	Duration   string `json:"duration"`
	Frames     int    `json:"frames"`
	Triggers   int    `json:"triggers"`
	PeakEnergy string `json:"peak_energy"`
	Reason     string `json:"reason,omitempty"`
}

// NewReport snapshots a session at now. Ended and reason are only filled in
// once the session has been finalized.
func NewReport(s *Session, now time.Time, ended bool, reason EndReason) *Report {
	report := &Report{
		UUID:       s.ID.String(),
		Output:     s.Output,
		Started:    s.Started.Format(time.RFC3339),
		Duration:   fmt.Sprintf("%.2f", now.Sub(s.Started).Seconds()),
		Frames:     s.Frames,
		Triggers:   s.Triggers,
		PeakEnergy: fmt.Sprintf("%.2f", s.PeakEnergy),
	}

	if ended {
		report.Ended = now.Format(time.RFC3339)
		report.Reason = string(reason)
	}

	return report
}

func (r *Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}
