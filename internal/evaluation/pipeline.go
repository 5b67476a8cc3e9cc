package evaluation

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/comparables"
	"propeval/server/internal/jobs"
	"propeval/server/internal/llm"
	"propeval/server/internal/models"
)

const photoAnalysisPrompt = "You are a property inspector. Describe the condition, finish quality, and any visible improvements or renovations in these property photos. Note anything that would affect a valuation. Plain text, a few short paragraphs."

// PropertyProgressStore mirrors stage transitions onto the owning property
// record so status polling by property identifier works.
type PropertyProgressStore interface {
	SetEvaluationProgress(id string, status string, stage string) error
	SaveEvaluationResult(id string, result *models.EvaluationResult, status string) error
}

// Notifier is told about terminal evaluations of persisted properties.
type Notifier interface {
	NotifyEvaluationFinished(property *models.Property, status string, summary string) error
}

// Pipeline executes the fixed stage sequence for one evaluation job. Stages
// run in strict order; the worker running the pipeline is the only writer of
// the job's state.
type Pipeline struct {
	jobs          *jobs.Store
	properties    PropertyProgressStore
	aggregator    *comparables.Aggregator
	vision        llm.VisionAnalyzer
	summarizer    *Summarizer
	composer      *Composer
	visionTimeout time.Duration
	notifier      Notifier
	logger        *logrus.Logger
}

func NewPipeline(
	logger *logrus.Logger,
	jobStore *jobs.Store,
	properties PropertyProgressStore,
	aggregator *comparables.Aggregator,
	vision llm.VisionAnalyzer,
	summarizer *Summarizer,
	composer *Composer,
	visionTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		jobs:          jobStore,
		properties:    properties,
		aggregator:    aggregator,
		vision:        vision,
		summarizer:    summarizer,
		composer:      composer,
		visionTimeout: visionTimeout,
		logger:        logger,
	}
}

// SetNotifier attaches an optional completion notifier.
func (p *Pipeline) SetNotifier(n Notifier) {
	p.notifier = n
}

// Run advances the job through the stage sequence. A failure at any stage
// marks the job failed with the stage recorded and skips the remaining
// stages; there is no automatic retry.
func (p *Pipeline) Run(ctx context.Context, jobID string, property *models.Property) {
	log := p.logger.WithFields(logrus.Fields{
		"job_id":      jobID,
		"property_id": property.ID,
	})

	hasReport := strings.TrimSpace(property.RPData) != ""

	stage := StageStarting
	p.setStage(jobID, property.ID, stage)
	log.WithField("has_report", hasReport).Info("Evaluation started")

	// analyzing_photos: always visited; a pass-through with the sentinel when
	// no images were submitted.
	stage = nextStage(stage, hasReport)
	p.setStage(jobID, property.ID, stage)

	photoAnalysis := NoPhotosSentinel
	photosAnalyzed := false
	if len(property.Images) > 0 {
		text, err := p.analyzePhotos(ctx, property.Images)
		if err != nil {
			p.fail(jobID, property, stage, err)
			return
		}
		photoAnalysis = text
		photosAnalyzed = true
	}

	// fetching_comparables
	stage = nextStage(stage, hasReport)
	p.setStage(jobID, property.ID, stage)

	set, err := p.aggregator.Aggregate(ctx, comparables.Query{
		Location:     property.Location,
		Beds:         property.Beds,
		Baths:        property.Baths,
		PropertyType: property.PropertyType,
	})
	if err != nil {
		p.fail(jobID, property, stage, err)
		return
	}

	// processing_rp_data, only when a market report is attached. A failed
	// summarization fails the whole job: proceeding with an empty digest
	// would be indistinguishable from "no report provided".
	digest := ""
	stage = nextStage(stage, hasReport)
	if stage == StageProcessingRPData {
		p.setStage(jobID, property.ID, stage)

		digest, err = p.summarizer.Summarize(ctx, property.RPData)
		if err != nil {
			p.fail(jobID, property, stage, err)
			return
		}
		stage = nextStage(stage, hasReport)
	}

	// generating_evaluation
	p.setStage(jobID, property.ID, stage)

	report, err := p.composer.Compose(ctx, property, set, digest, photoAnalysis)
	if err != nil {
		p.fail(jobID, property, stage, err)
		return
	}

	result := &models.EvaluationResult{
		EvaluationReport:     report,
		ComparablesData:      set,
		ImprovementsDetected: photoAnalysis,
		PricePerSqm:          comparables.PricePerSqm(property.Price, property.Size),
		PhotosAnalyzed:       photosAnalyzed,
	}

	p.complete(jobID, property, result)
	log.WithField("report_chars", len(report)).Info("Evaluation completed")
}

func (p *Pipeline) analyzePhotos(ctx context.Context, images []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.visionTimeout)
	defer cancel()
	return p.vision.AnalyzeImages(ctx, images, photoAnalysisPrompt)
}

// setStage writes the transition to the job and, for persisted properties,
// mirrors it onto the property record. Writes happen immediately so
// concurrent pollers observe intermediate stages.
func (p *Pipeline) setStage(jobID, propertyID string, stage Stage) {
	if err := p.jobs.Update(jobID, func(j *jobs.Job) {
		j.Stage = stage.String()
		j.Status = StatusFor(stage)
	}); err != nil {
		p.logger.WithError(err).WithField("job_id", jobID).Error("Failed to update job stage")
	}

	if propertyID != "" && p.properties != nil {
		if err := p.properties.SetEvaluationProgress(propertyID, StatusFor(stage), stage.String()); err != nil {
			p.logger.WithError(err).WithField("property_id", propertyID).Error("Failed to mirror stage to property")
		}
	}
}

func (p *Pipeline) fail(jobID string, property *models.Property, stage Stage, cause error) {
	stageErr := newStageError(stage, cause)

	p.logger.WithError(cause).WithFields(logrus.Fields{
		"job_id":  jobID,
		"stage":   stage.String(),
		"timeout": stageErr.Timeout,
	}).Error("Evaluation stage failed")

	if err := p.jobs.Update(jobID, func(j *jobs.Job) {
		j.Stage = stage.String()
		j.Status = StatusFailed
		j.Error = stageErr.Error()
	}); err != nil {
		p.logger.WithError(err).WithField("job_id", jobID).Error("Failed to mark job failed")
	}

	if property.ID != "" && p.properties != nil {
		if err := p.properties.SetEvaluationProgress(property.ID, StatusFailed, stage.String()); err != nil {
			p.logger.WithError(err).WithField("property_id", property.ID).Error("Failed to mirror failure to property")
		}
	}

	p.notify(property, StatusFailed, stageErr.Error())
}

func (p *Pipeline) complete(jobID string, property *models.Property, result *models.EvaluationResult) {
	if err := p.jobs.Update(jobID, func(j *jobs.Job) {
		j.Stage = StageCompleted.String()
		j.Status = StatusCompleted
		j.Result = result
	}); err != nil {
		p.logger.WithError(err).WithField("job_id", jobID).Error("Failed to mark job completed")
	}

	if property.ID != "" && p.properties != nil {
		if err := p.properties.SaveEvaluationResult(property.ID, result, StatusCompleted); err != nil {
			p.logger.WithError(err).WithField("property_id", property.ID).Error("Failed to store evaluation result")
		}
	}

	p.notify(property, StatusCompleted, "")
}

func (p *Pipeline) notify(property *models.Property, status, summary string) {
	if p.notifier == nil || property.ID == "" {
		return
	}
	if err := p.notifier.NotifyEvaluationFinished(property, status, summary); err != nil {
		p.logger.WithError(err).Warn("Failed to send evaluation notification")
	}
}
