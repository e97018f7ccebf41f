package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/ddp"
)

// Input is one media item to analyze. Exactly one of MediaID, File or
// LinkURL should be set; a populated MediaID means the item was
// already submitted (link flows pre-submit) and submission is skipped.
type Input struct {
	MediaID ddp.MediaID

	File     io.Reader
	Filename string
	FileKind ddp.MediaKind

	LinkURL string

	// Source is the user-facing description persisted with the result
	// (a filename or the pasted link).
	Source string
}

// SubmittedMedia identifies the item a result belongs to.
type SubmittedMedia struct {
	MediaID ddp.MediaID
	Source  string
}

type Submitter interface {
	SubmitFile(ctx context.Context, r io.Reader, filename string, kind ddp.MediaKind) (ddp.MediaID, error)
	SubmitLink(ctx context.Context, url string) (ddp.MediaID, error)
}

type Triggerer interface {
	TriggerAnalysis(ctx context.Context, id ddp.MediaID, mode analysis.Mode) error
}

type Waiter interface {
	Wait(ctx context.Context, id ddp.MediaID) (ddp.ResultID, error)
}

type Fetcher interface {
	FetchResult(ctx context.Context, id ddp.ResultID) (analysis.RawResult, error)
}

// Consumer receives each successful result exactly once per pipeline
// run and owns the persistence and reward side effects.
type Consumer interface {
	Consume(ctx context.Context, media SubmittedMedia, res analysis.NormalizedResult) error
}

type Pipeline struct {
	submitter Submitter
	triggerer Triggerer
	waiter    Waiter
	fetcher   Fetcher
	consumer  Consumer
}

func New(submitter Submitter, triggerer Triggerer, waiter Waiter, fetcher Fetcher, consumer Consumer) *Pipeline {
	return &Pipeline{
		submitter: submitter,
		triggerer: triggerer,
		waiter:    waiter,
		fetcher:   fetcher,
		consumer:  consumer,
	}
}

/*
Analyze runs one media item through the whole pipeline: submit,
trigger, wait for completion, fetch and normalize, hand off to the
consumer. Any step error aborts the rest and propagates unchanged;
retry policy lives inside the steps (trigger retries not-ready, the
waiter races its two channels), never here.
*/
func (p *Pipeline) Analyze(ctx context.Context, in Input, mode analysis.Mode) (analysis.NormalizedResult, error) {
	var res analysis.NormalizedResult

	logger := log.WithField("run", uuid.NewString())

	mediaID := in.MediaID
	if mediaID == "" {
		var err error
		switch {
		case in.File != nil:
			mediaID, err = p.submitter.SubmitFile(ctx, in.File, in.Filename, in.FileKind)
		case in.LinkURL != "":
			mediaID, err = p.submitter.SubmitLink(ctx, in.LinkURL)
		default:
			return res, errors.New("no media to analyze")
		}
		if err != nil {
			return res, err
		}
		logger.WithField("mediaID", mediaID).Debug("media submitted")
	}

	if err := p.triggerer.TriggerAnalysis(ctx, mediaID, mode); err != nil {
		return res, err
	}
	logger.WithField("mediaID", mediaID).Infof("analysis triggered, mode=%s", mode)

	resultID, err := p.waiter.Wait(ctx, mediaID)
	if err != nil {
		return res, err
	}

	raw, err := p.fetcher.FetchResult(ctx, resultID)
	if err != nil {
		return res, err
	}
	res = analysis.Normalize(raw, mode)
	if res.ResultID == "" {
		res.ResultID = string(resultID)
	}

	if res.Status == analysis.StatusError {
		// A backend-reported analysis error is still a well-formed
		// result; it just triggers no side effects.
		logger.WithField("mediaID", mediaID).Warnf("analysis returned error result: %s", res.Message)
		return res, nil
	}

	logger.WithField("mediaID", mediaID).WithField("resultID", res.ResultID).Infof("analysis complete: %s", res.Overall)

	if p.consumer != nil {
		if err := p.consumer.Consume(ctx, SubmittedMedia{MediaID: mediaID, Source: in.Source}, res); err != nil {
			return res, err
		}
	}
	return res, nil
}
