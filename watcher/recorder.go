package watcher

import (
	"context"
	"errors"

	"github.com/lucsky/cuid"
	log "github.com/sirupsen/logrus"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/pipeline"
)

type HistoryStore interface {
	AddHistory(ctx context.Context, source string, resultID ddp.ResultID, verdict analysis.Verdict, summary string, visualURL string) (string, error)
	MarkReported(ctx context.Context, resultID ddp.ResultID) (bool, error)
}

type Reporter interface {
	Report(ctx context.Context, id ddp.ResultID) (*ddp.ReportResponse, error)
}

// Recorder is the pipeline's result consumer: it writes the history
// record and files the reward report for manipulated media. Reporting
// is at-most-once per result id: the database mark is claimed before
// the call, so a rerun never reports twice even if the server-side
// dedup were to miss.
type Recorder struct {
	db              HistoryStore
	reporter        Reporter
	testModeEnabled bool
}

func NewRecorder(db HistoryStore, reporter Reporter, isTestMode bool) *Recorder {
	return &Recorder{
		db:              db,
		reporter:        reporter,
		testModeEnabled: isTestMode,
	}
}

func (r *Recorder) Consume(ctx context.Context, media pipeline.SubmittedMedia, res analysis.NormalizedResult) error {
	resultID := ddp.ResultID(res.ResultID)
	summary := analysis.FormatSummary(res)

	var historyID string
	if r.testModeEnabled {
		historyID = cuid.New()
		log.WithField("summary", summary).Infof("Simulating history record %s", historyID)
	} else {
		var err error
		historyID, err = r.db.AddHistory(ctx, media.Source, resultID, res.Overall, summary, visualURL(res))
		if err != nil {
			return err
		}
	}
	log.WithField("historyID", historyID).WithField("resultID", resultID).Debug("history recorded")

	if res.Overall != analysis.VerdictFake {
		return nil
	}
	return r.report(ctx, resultID)
}

func (r *Recorder) report(ctx context.Context, resultID ddp.ResultID) error {
	first, err := r.db.MarkReported(ctx, resultID)
	if err != nil {
		return err
	}
	if !first {
		log.WithField("resultID", resultID).Debug("result already reported, skipping")
		return nil
	}
	if r.testModeEnabled {
		log.WithField("resultID", resultID).Info("Simulating report submission")
		return nil
	}

	resp, err := r.reporter.Report(ctx, resultID)
	if err != nil {
		var reportErr *ddp.ReportError
		if errors.As(err, &reportErr) && reportErr.AlreadyReported() {
			// Server had it already; the local mark now agrees with it.
			log.WithField("resultID", resultID).Warn("server already had a report for this result")
			return nil
		}
		// The mark stays claimed: losing one report beats double-filing.
		log.WithField("resultID", resultID).Errorf("error filing report: %v", err)
		return nil
	}
	log.WithField("resultID", resultID).Infof("report filed, %d points granted (total %d)", resp.PointsAdded, resp.TotalPoints)
	return nil
}

func visualURL(res analysis.NormalizedResult) string {
	switch {
	case res.Frequency != nil && res.Frequency.VisualURL != "":
		return res.Frequency.VisualURL
	case res.Unite != nil && res.Unite.VisualURL != "":
		return res.Unite.VisualURL
	case res.RPPG != nil:
		return res.RPPG.VisualURL
	default:
		return ""
	}
}
