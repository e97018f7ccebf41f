package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/pipeline"
)

type mockHistoryStore struct {
	mock.Mock
}

func (m *mockHistoryStore) AddHistory(ctx context.Context, source string, resultID ddp.ResultID, verdict analysis.Verdict, summary string, visualURL string) (string, error) {
	args := m.Called(ctx, source, resultID, verdict, summary, visualURL)
	return args.String(0), args.Error(1)
}

func (m *mockHistoryStore) MarkReported(ctx context.Context, resultID ddp.ResultID) (bool, error) {
	args := m.Called(ctx, resultID)
	return args.Bool(0), args.Error(1)
}

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Report(ctx context.Context, id ddp.ResultID) (*ddp.ReportResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ddp.ReportResponse), args.Error(1)
}

func fakeResult(verdict analysis.Verdict) analysis.NormalizedResult {
	p := 0.2
	return analysis.NormalizedResult{
		Status:             analysis.StatusSuccess,
		Mode:               analysis.ModeFast,
		ResultID:           "88",
		Overall:            verdict,
		OverallProbability: &p,
		Frequency:          &analysis.Signal{Verdict: &verdict, Probability: &p, VisualURL: "https://cdn/visual.png"},
	}
}

func media() pipeline.SubmittedMedia {
	return pipeline.SubmittedMedia{MediaID: "33", Source: "clip.mp4"}
}

func TestConsumeFakeRecordsAndReports(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, false)

	db.On("AddHistory", mock.Anything, "clip.mp4", ddp.ResultID("88"), analysis.VerdictFake, mock.Anything, "https://cdn/visual.png").Return("hist-1", nil)
	db.On("MarkReported", mock.Anything, ddp.ResultID("88")).Return(true, nil)
	reporter.On("Report", mock.Anything, ddp.ResultID("88")).Return(&ddp.ReportResponse{PointsAdded: 1000, TotalPoints: 1000}, nil)

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictFake))
	require.NoError(t, err)
	reporter.AssertNumberOfCalls(t, "Report", 1)
}

func TestConsumeRealSkipsReport(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, false)

	db.On("AddHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("hist-1", nil)

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictReal))
	require.NoError(t, err)
	db.AssertNotCalled(t, "MarkReported", mock.Anything, mock.Anything)
	reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestConsumeAlreadyMarkedSkipsReport(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, false)

	db.On("AddHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("hist-1", nil)
	db.On("MarkReported", mock.Anything, ddp.ResultID("88")).Return(false, nil)

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictFake))
	require.NoError(t, err)
	reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestConsumeToleratesServerSideDuplicate(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, false)

	db.On("AddHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("hist-1", nil)
	db.On("MarkReported", mock.Anything, ddp.ResultID("88")).Return(true, nil)
	reporter.On("Report", mock.Anything, ddp.ResultID("88")).Return(nil, &ddp.ReportError{StatusCode: 400, Detail: "Already reported"})

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictFake))
	assert.NoError(t, err)
}

func TestConsumeHistoryFailureAborts(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, false)

	dbErr := errors.New("connection reset")
	db.On("AddHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", dbErr)

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictFake))
	assert.ErrorIs(t, err, dbErr)
	reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestConsumeTestModeMakesNoCalls(t *testing.T) {
	db := &mockHistoryStore{}
	reporter := &mockReporter{}
	recorder := NewRecorder(db, reporter, true)

	db.On("MarkReported", mock.Anything, ddp.ResultID("88")).Return(true, nil)

	err := recorder.Consume(context.Background(), media(), fakeResult(analysis.VerdictFake))
	require.NoError(t, err)
	db.AssertNotCalled(t, "AddHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}
