package model

import (
	"time"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/database/db"
	"github.com/ddp-org/detectbot/ddp"
)

type Submission struct {
	ID       string
	Kind     SourceKind
	Source   string
	Mode     analysis.Mode
	MediaID  ddp.MediaID
	Enqueued time.Time
}

func SubmissionFromQueue(sq db.SubmissionQueue) (*Submission, error) {
	kind, err := ParseSourceKind(sq.Kind)
	if err != nil {
		return nil, err
	}
	mode, err := analysis.ParseMode(sq.Mode)
	if err != nil {
		return nil, err
	}
	return &Submission{
		ID:       sq.ID,
		Kind:     kind,
		Source:   sq.Source,
		Mode:     mode,
		MediaID:  ddp.MediaID(sq.MediaID),
		Enqueued: sq.Enqueued,
	}, nil
}
