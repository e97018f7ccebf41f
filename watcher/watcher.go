package watcher

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/model"
	"github.com/ddp-org/detectbot/pipeline"
)

type SubmissionQueue interface {
	GetPendingSubmissions(ctx context.Context) ([]model.Submission, error)
	SetSubmissionMedia(ctx context.Context, submissionID string, mediaID ddp.MediaID) error
	DeleteSubmission(ctx context.Context, submissionID string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, in pipeline.Input, mode analysis.Mode) (analysis.NormalizedResult, error)
}

type Submitter interface {
	SubmitLink(ctx context.Context, url string) (ddp.MediaID, error)
}

// Watcher drains the submission queue and carries each item through
// the analysis pipeline.
type Watcher struct {
	analyzer  Analyzer
	submitter Submitter
	queue     SubmissionQueue
}

func NewWatcher(analyzer Analyzer, submitter Submitter, queue SubmissionQueue) *Watcher {
	return &Watcher{
		analyzer:  analyzer,
		submitter: submitter,
		queue:     queue,
	}
}

func (w *Watcher) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			log.Debug("exiting Watcher by closing channel")
			return nil
		case <-time.After(5 * time.Second): // check for work every 5 seconds
			submissions, err := w.queue.GetPendingSubmissions(ctx)
			if err != nil {
				log.Errorf("error getting work: %v", err)
				return err
			}
			if len(submissions) > 0 {
				log.Infof("found %d submissions to analyze", len(submissions))
			}

			for _, submission := range submissions {
				if err := w.process(ctx, submission); err != nil {
					log.WithField("submissionID", submission.ID).Errorf("error analyzing submission: %v", err)
					// Context canceled errors are expected if the program is terminating, so stop the loop in that case
					if ctx.Err() != nil {
						return err
					}
					continue // HACK: leave it queued and move on for now
				}
				if err := w.queue.DeleteSubmission(ctx, submission.ID); err != nil {
					log.WithField("submissionID", submission.ID).Errorf("error dequeuing submission: %v", err)
				}
			}
		}
	}
}

func (w *Watcher) process(ctx context.Context, submission model.Submission) error {
	in := pipeline.Input{
		MediaID: submission.MediaID,
		Source:  submission.Source,
	}

	if in.MediaID == "" && submission.Kind == model.SourceKindLink {
		// Pre-submit the link so the handle survives a later retry of
		// this item.
		mediaID, err := w.submitter.SubmitLink(ctx, submission.Source)
		if err != nil {
			return err
		}
		if err := w.queue.SetSubmissionMedia(ctx, submission.ID, mediaID); err != nil {
			log.WithField("submissionID", submission.ID).Warnf("submitted media %s not recorded on queue item: %v", mediaID, err)
		}
		in.MediaID = mediaID
	}

	if in.MediaID == "" && submission.Kind == model.SourceKindFile {
		f, err := os.Open(submission.Source)
		if err != nil {
			return err
		}
		defer f.Close()
		in.File = f
		in.Filename = submission.Source
		in.FileKind = ddp.MediaKindVideo
	}

	_, err := w.analyzer.Analyze(ctx, in, submission.Mode)
	return err
}
