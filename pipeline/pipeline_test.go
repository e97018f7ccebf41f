package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/ddp"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitFile(ctx context.Context, r io.Reader, filename string, kind ddp.MediaKind) (ddp.MediaID, error) {
	args := m.Called(ctx, r, filename, kind)
	return args.Get(0).(ddp.MediaID), args.Error(1)
}

func (m *mockSubmitter) SubmitLink(ctx context.Context, url string) (ddp.MediaID, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(ddp.MediaID), args.Error(1)
}

type mockTriggerer struct {
	mock.Mock
}

func (m *mockTriggerer) TriggerAnalysis(ctx context.Context, id ddp.MediaID, mode analysis.Mode) error {
	args := m.Called(ctx, id, mode)
	return args.Error(0)
}

type mockWaiter struct {
	mock.Mock
}

func (m *mockWaiter) Wait(ctx context.Context, id ddp.MediaID) (ddp.ResultID, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ddp.ResultID), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchResult(ctx context.Context, id ddp.ResultID) (analysis.RawResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(analysis.RawResult), args.Error(1)
}

type mockConsumer struct {
	mock.Mock
}

func (m *mockConsumer) Consume(ctx context.Context, media SubmittedMedia, res analysis.NormalizedResult) error {
	args := m.Called(ctx, media, res)
	return args.Error(0)
}

type pipelineMocks struct {
	submitter *mockSubmitter
	triggerer *mockTriggerer
	waiter    *mockWaiter
	fetcher   *mockFetcher
	consumer  *mockConsumer
}

func newTestPipeline() (*Pipeline, *pipelineMocks) {
	mocks := &pipelineMocks{
		submitter: &mockSubmitter{},
		triggerer: &mockTriggerer{},
		waiter:    &mockWaiter{},
		fetcher:   &mockFetcher{},
		consumer:  &mockConsumer{},
	}
	return New(mocks.submitter, mocks.triggerer, mocks.waiter, mocks.fetcher, mocks.consumer), mocks
}

func fakeRawResult() analysis.RawResult {
	raw, _ := analysis.ParseRawResult([]byte(`{"status": "success", "result": "FAKE", "probability": 0.1, "result_id": "88"}`))
	return raw
}

func TestAnalyzeFileEndToEnd(t *testing.T) {
	pipe, mocks := newTestPipeline()

	file := strings.NewReader("bytes")
	mocks.submitter.On("SubmitFile", mock.Anything, file, "clip.mp4", ddp.MediaKindVideo).Return(ddp.MediaID("33"), nil)
	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(fakeRawResult(), nil)
	mocks.consumer.On("Consume", mock.Anything, SubmittedMedia{MediaID: "33", Source: "clip.mp4"}, mock.Anything).Return(nil)

	res, err := pipe.Analyze(context.Background(), Input{
		File:     file,
		Filename: "clip.mp4",
		FileKind: ddp.MediaKindVideo,
		Source:   "clip.mp4",
	}, analysis.ModeFast)

	require.NoError(t, err)
	assert.Equal(t, analysis.StatusSuccess, res.Status)
	assert.Equal(t, analysis.VerdictFake, res.Overall)
	mocks.consumer.AssertNumberOfCalls(t, "Consume", 1)
}

func TestAnalyzeLinkSubmits(t *testing.T) {
	pipe, mocks := newTestPipeline()

	mocks.submitter.On("SubmitLink", mock.Anything, "https://youtu.be/abc").Return(ddp.MediaID("33"), nil)
	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeDeep).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(fakeRawResult(), nil)
	mocks.consumer.On("Consume", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := pipe.Analyze(context.Background(), Input{LinkURL: "https://youtu.be/abc", Source: "https://youtu.be/abc"}, analysis.ModeDeep)
	require.NoError(t, err)
}

func TestAnalyzePresubmittedSkipsSubmission(t *testing.T) {
	pipe, mocks := newTestPipeline()

	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(fakeRawResult(), nil)
	mocks.consumer.On("Consume", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := pipe.Analyze(context.Background(), Input{MediaID: "33", Source: "queued link"}, analysis.ModeFast)
	require.NoError(t, err)
	mocks.submitter.AssertNotCalled(t, "SubmitFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mocks.submitter.AssertNotCalled(t, "SubmitLink", mock.Anything, mock.Anything)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	pipe, _ := newTestPipeline()
	_, err := pipe.Analyze(context.Background(), Input{}, analysis.ModeFast)
	assert.ErrorContains(t, err, "no media")
}

func TestAnalyzeTriggerFailureAborts(t *testing.T) {
	pipe, mocks := newTestPipeline()

	triggerErr := &ddp.TriggerError{StatusCode: 500, Body: "boom"}
	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(triggerErr)

	_, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	assert.ErrorIs(t, err, triggerErr)
	mocks.waiter.AssertNotCalled(t, "Wait", mock.Anything, mock.Anything)
	mocks.consumer.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeWaitFailureAborts(t *testing.T) {
	pipe, mocks := newTestPipeline()

	waitErr := &ddp.AnalysisTimeoutError{Attempts: 60}
	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID(""), waitErr)

	_, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	assert.ErrorIs(t, err, waitErr)
	mocks.fetcher.AssertNotCalled(t, "FetchResult", mock.Anything, mock.Anything)
	mocks.consumer.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeErrorResultSkipsConsumer(t *testing.T) {
	pipe, mocks := newTestPipeline()

	raw, err := analysis.ParseRawResult([]byte(`{"status": "error", "message": "face not found"}`))
	require.NoError(t, err)

	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(raw, nil)

	res, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusError, res.Status)
	assert.Equal(t, "face not found", res.Message)
	mocks.consumer.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeBackfillsResultID(t *testing.T) {
	pipe, mocks := newTestPipeline()

	raw, err := analysis.ParseRawResult([]byte(`{"status": "success", "result": "REAL", "probability": 0.9}`))
	require.NoError(t, err)

	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(raw, nil)
	mocks.consumer.On("Consume", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, "88", res.ResultID)
}

func TestAnalyzeConsumerErrorPropagates(t *testing.T) {
	pipe, mocks := newTestPipeline()

	consumeErr := errors.New("history insert failed")
	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(fakeRawResult(), nil)
	mocks.consumer.On("Consume", mock.Anything, mock.Anything, mock.Anything).Return(consumeErr)

	_, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	assert.ErrorIs(t, err, consumeErr)
}

func TestAnalyzeNilConsumer(t *testing.T) {
	mocks := &pipelineMocks{triggerer: &mockTriggerer{}, waiter: &mockWaiter{}, fetcher: &mockFetcher{}}
	pipe := New(&mockSubmitter{}, mocks.triggerer, mocks.waiter, mocks.fetcher, nil)

	mocks.triggerer.On("TriggerAnalysis", mock.Anything, ddp.MediaID("33"), analysis.ModeFast).Return(nil)
	mocks.waiter.On("Wait", mock.Anything, ddp.MediaID("33")).Return(ddp.ResultID("88"), nil)
	mocks.fetcher.On("FetchResult", mock.Anything, ddp.ResultID("88")).Return(fakeRawResult(), nil)

	res, err := pipe.Analyze(context.Background(), Input{MediaID: "33"}, analysis.ModeFast)
	require.NoError(t, err)
	assert.Equal(t, analysis.VerdictFake, res.Overall)
}
