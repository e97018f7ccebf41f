package db

import "time"

type AnalysisHistory struct {
	ID        string    `db:"id"`
	Source    string    `db:"source"`
	ResultID  string    `db:"result_id"`
	Verdict   string    `db:"verdict"`
	Summary   string    `db:"summary"`
	VisualURL string    `db:"visual_url"`
	Analyzed  time.Time `db:"analyzed"`
}
