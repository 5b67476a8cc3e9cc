package evaluation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"propeval/server/internal/comparables"
	"propeval/server/internal/jobs"
	"propeval/server/internal/models"
)

type stubVision struct {
	analysis string
	err      error
	calls    int
}

func (v *stubVision) AnalyzeImages(ctx context.Context, images []string, prompt string) (string, error) {
	v.calls++
	return v.analysis, v.err
}

type stubSource struct {
	entries []models.Comparable
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context, q comparables.Query) ([]models.Comparable, error) {
	return s.entries, s.err
}

func price(v float64) *float64 { return &v }

// progressRecorder captures the stage transitions mirrored onto the property
// record, in order.
type progressRecorder struct {
	mu     sync.Mutex
	stages []string
	status []string
	result *models.EvaluationResult
}

func (r *progressRecorder) SetEvaluationProgress(id, status, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.status = append(r.status, status)
	return nil
}

func (r *progressRecorder) SaveEvaluationResult(id string, result *models.EvaluationResult, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.status = append(r.status, status)
	return nil
}

func newTestPipeline(t *testing.T, vision *stubVision, completer *mockCompleter, source comparables.Source) (*Pipeline, *jobs.Store, *progressRecorder) {
	t.Helper()
	logger := logrus.New()

	var sources []comparables.Source
	if source != nil {
		sources = append(sources, source)
	}
	aggregator := comparables.NewAggregator(logger, time.Second, sources...)

	summarizer := NewSummarizer(logger, completer, 350, 1000, time.Second)
	composer := NewComposer(logger, completer, 1200, time.Second)

	store := jobs.NewStore(logger, time.Hour)
	recorder := &progressRecorder{}

	pipeline := NewPipeline(logger, store, recorder, aggregator, vision, summarizer, composer, time.Second)
	return pipeline, store, recorder
}

func reportProperty() *models.Property {
	p := testProperty()
	p.RPData = "Long market report with comparable sales and growth figures."
	p.Images = models.ImageList{"base64photo"}
	return p
}

func TestPipeline_FullRun(t *testing.T) {
	vision := &stubVision{analysis: "modern kitchen, fresh paint"}
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything, 350).Return("market digest", nil).Once()
	completer.On("Complete", mock.Anything, mock.Anything, 1200).Return(markerReport, nil).Once()

	source := &stubSource{entries: []models.Comparable{
		{Address: "1 Test St", Status: "sold", Price: price(700000)},
	}}

	pipeline, store, recorder := newTestPipeline(t, vision, completer, source)

	job, err := store.Create("prop-1")
	assert.NoError(t, err)

	pipeline.Run(context.Background(), job.ID, reportProperty())

	job, err = store.Get(job.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, StageCompleted.String(), job.Stage)
	assert.NotNil(t, job.Result)
	assert.Equal(t, markerReport, job.Result.EvaluationReport)
	assert.Equal(t, "modern kitchen, fresh paint", job.Result.ImprovementsDetected)
	assert.True(t, job.Result.PhotosAnalyzed)
	assert.NotNil(t, job.Result.PricePerSqm)
	assert.Equal(t, 5000.0, *job.Result.PricePerSqm)

	assert.Equal(t, []string{
		"starting",
		"analyzing_photos",
		"fetching_comparables",
		"processing_rp_data",
		"generating_evaluation",
	}, recorder.stages)
	assert.Equal(t, 1, vision.calls)
	completer.AssertExpectations(t)
}

func TestPipeline_SkipsReportStageWithoutReport(t *testing.T) {
	vision := &stubVision{analysis: "tidy interior"}
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything, 1200).Return(markerReport, nil).Once()

	pipeline, store, recorder := newTestPipeline(t, vision, completer, nil)

	property := testProperty()
	property.Images = models.ImageList{"base64photo"}

	job, _ := store.Create("prop-1")
	pipeline.Run(context.Background(), job.ID, property)

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.NotContains(t, recorder.stages, "processing_rp_data")
	completer.AssertExpectations(t)
}

func TestPipeline_NoPhotos(t *testing.T) {
	vision := &stubVision{}
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything, 1200).Return(markerReport, nil).Once()

	pipeline, store, _ := newTestPipeline(t, vision, completer, nil)

	job, _ := store.Create("prop-1")
	pipeline.Run(context.Background(), job.ID, testProperty())

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, NoPhotosSentinel, job.Result.ImprovementsDetected)
	assert.False(t, job.Result.PhotosAnalyzed)
	assert.Equal(t, 0, vision.calls)
}

func TestPipeline_FailsAtPhotoAnalysis(t *testing.T) {
	vision := &stubVision{err: errors.New("vision model unavailable")}
	completer := &mockCompleter{}

	pipeline, store, recorder := newTestPipeline(t, vision, completer, nil)

	property := testProperty()
	property.Images = models.ImageList{"base64photo"}

	job, _ := store.Create("prop-1")
	pipeline.Run(context.Background(), job.ID, property)

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageAnalyzingPhotos.String(), job.Stage)
	assert.Contains(t, job.Error, "analyzing_photos")
	assert.Nil(t, job.Result)
	assert.Equal(t, "failed", recorder.status[len(recorder.status)-1])
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_FailsAtComparables(t *testing.T) {
	vision := &stubVision{}
	completer := &mockCompleter{}
	source := &stubSource{err: errors.New("connection refused")}

	pipeline, store, _ := newTestPipeline(t, vision, completer, source)

	job, _ := store.Create("prop-1")
	pipeline.Run(context.Background(), job.ID, testProperty())

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageFetchingComparables.String(), job.Stage)
}

func TestPipeline_FailsWhenSummarizationFails(t *testing.T) {
	vision := &stubVision{}
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything, 350).
		Return("", errors.New("model unavailable")).Once()

	pipeline, store, _ := newTestPipeline(t, vision, completer, nil)

	property := testProperty()
	property.RPData = "Attached market report."

	job, _ := store.Create("prop-1")
	pipeline.Run(context.Background(), job.ID, property)

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageProcessingRPData.String(), job.Stage)
	// The composition call never runs once summarization fails
	completer.AssertNumberOfCalls(t, "Complete", 1)
}

func TestPipeline_AdHocPropertySkipsMirroring(t *testing.T) {
	vision := &stubVision{}
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything, 1200).Return(markerReport, nil).Once()

	pipeline, store, recorder := newTestPipeline(t, vision, completer, nil)

	property := testProperty()
	property.ID = ""

	job, _ := store.Create("")
	pipeline.Run(context.Background(), job.ID, property)

	job, _ = store.Get(job.ID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Empty(t, recorder.stages)
	assert.Nil(t, recorder.result)
}
