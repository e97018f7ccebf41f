package model

import (
	"time"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/database/db"
	"github.com/ddp-org/detectbot/ddp"
)

// HistoryRecord is one completed analysis as shown to the user. The
// result id is the only backend handle retained past the pipeline run;
// it is what a later report refers to.
type HistoryRecord struct {
	ID        string
	Source    string
	ResultID  ddp.ResultID
	Verdict   analysis.Verdict
	Summary   string
	VisualURL string
	Analyzed  time.Time
}

func HistoryFromRow(ah db.AnalysisHistory) *HistoryRecord {
	return &HistoryRecord{
		ID:        ah.ID,
		Source:    ah.Source,
		ResultID:  ddp.ResultID(ah.ResultID),
		Verdict:   analysis.Verdict(ah.Verdict),
		Summary:   ah.Summary,
		VisualURL: ah.VisualURL,
		Analyzed:  ah.Analyzed,
	}
}
