package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propeval/server/internal/database"
	"propeval/server/internal/evaluation"
	"propeval/server/internal/jobs"
	"propeval/server/internal/models"
	"propeval/server/internal/notify"
	"propeval/server/internal/queue"
)

type Handler struct {
	db       *database.Database
	store    *jobs.Store
	queue    *queue.EvaluationQueue
	composer *evaluation.Composer
	notifier *notify.Service
	logger   *logrus.Logger
}

func NewHandler(
	db *database.Database,
	store *jobs.Store,
	q *queue.EvaluationQueue,
	composer *evaluation.Composer,
	notifier *notify.Service,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:       db,
		store:    store,
		queue:    q,
		composer: composer,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Property Evaluation API"})
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var req models.PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid property payload")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	property, err := h.db.CreateProperty(&req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create property")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create property"})
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *Handler) GetProperties(c *gin.Context) {
	properties, err := h.db.GetAllProperties()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list properties")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list properties"})
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetProperty(c *gin.Context) {
	property, err := h.db.GetProperty(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get property"})
		return
	}

	c.JSON(http.StatusOK, property)
}

// UpdateRPData attaches a market report; subsequent evaluations for the
// property route through the report-processing stage.
func (h *Handler) UpdateRPData(c *gin.Context) {
	var req models.RPDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	err := h.db.UpdateRPData(c.Param("id"), req.Report)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update RP data")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update RP data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RP data updated"})
}

// QuickEvaluate submits an ad-hoc evaluation. It returns the job identifier
// immediately; callers poll QuickEvaluationStatus until terminal.
func (h *Handler) QuickEvaluate(c *gin.Context) {
	var req models.PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	job, err := h.store.Create("")
	if err != nil {
		h.logger.WithError(err).Error("Failed to create evaluation job")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create evaluation job"})
		return
	}

	if err := h.queue.Push(queue.NewTask(job.ID, req.ToProperty())); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue evaluation")
		h.markRejected(job.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Evaluation queue is full, try again later"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": job.ID})
}

func (h *Handler) QuickEvaluationStatus(c *gin.Context) {
	job, err := h.store.Get(c.Param("job_id"))
	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}

	// While running the status carries the stage name; terminal jobs report
	// completed/failed.
	status := job.Stage
	if job.Status == evaluation.StatusCompleted || job.Status == evaluation.StatusFailed {
		status = job.Status
	}

	resp := gin.H{"status": status, "stage": job.Stage}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	c.JSON(http.StatusOK, resp)
}

// EvaluateProperty runs a full evaluation for a stored property. The response
// is sent once the pipeline reaches a terminal state; stage progress is
// observable concurrently through EvaluationStatus.
func (h *Handler) EvaluateProperty(c *gin.Context) {
	property, err := h.db.GetProperty(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get property"})
		return
	}

	job, err := h.store.Create(property.ID)
	if errors.Is(err, jobs.ErrInProgress) {
		c.JSON(http.StatusConflict, gin.H{"detail": "Evaluation already in progress"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to create evaluation job")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create evaluation job"})
		return
	}

	task := queue.NewTask(job.ID, property)
	if err := h.queue.Push(task); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue evaluation")
		h.markRejected(job.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Evaluation queue is full, try again later"})
		return
	}

	// The pipeline keeps running if the caller disconnects; progress stays
	// pollable by property identifier.
	if err := task.Wait(c.Request.Context()); err != nil {
		return
	}

	job, err = h.store.Get(job.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Evaluation finished but job state is gone"})
		return
	}

	if job.Status != evaluation.StatusCompleted || job.Result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":           false,
			"detail":            job.Error,
			"evaluation_status": job.Status,
		})
		return
	}

	result := job.Result
	resp := gin.H{
		"success":               true,
		"evaluation_report":     result.EvaluationReport,
		"comparables_data":      result.ComparablesData,
		"improvements_detected": result.ImprovementsDetected,
		"evaluation_status":     job.Status,
	}
	if result.PricePerSqm != nil {
		resp["price_per_sqm"] = *result.PricePerSqm
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) EvaluationStatus(c *gin.Context) {
	property, err := h.db.GetProperty(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get property"})
		return
	}

	status := property.EvaluationStatus
	if status == "" {
		status = "not_started"
	}

	c.JSON(http.StatusOK, gin.H{
		"evaluation_status": status,
		"evaluation_stage":  property.EvaluationStage,
	})
}

// GeneratePitch produces a one-shot sales pitch for a stored property.
func (h *Handler) GeneratePitch(c *gin.Context) {
	property, err := h.db.GetProperty(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Property not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get property"})
		return
	}

	pitch, err := h.composer.ComposePitch(c.Request.Context(), property)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate pitch")
		c.JSON(http.StatusBadGateway, gin.H{"detail": "Failed to generate pitch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "pitch": pitch})
}

func (h *Handler) GetAPISettings(c *gin.Context) {
	settings, err := h.db.GetAPISettings()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get API settings")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get API settings"})
		return
	}

	if settings == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "settings": models.APISettings{}})
		return
	}

	// Keys are masked on the way out
	settings.DomainAPIKey = maskKey(settings.DomainAPIKey)
	settings.CoreLogicAPIKey = maskKey(settings.CoreLogicAPIKey)
	settings.RealEstateAPIKey = maskKey(settings.RealEstateAPIKey)
	settings.PriceFinderAPIKey = maskKey(settings.PriceFinderAPIKey)

	c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

func (h *Handler) SaveAPISettings(c *gin.Context) {
	var req models.APISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	if err := h.db.UpdateAPISettings(&req); err != nil {
		h.logger.WithError(err).Error("Failed to save API settings")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to save API settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "API settings saved"})
}

func (h *Handler) GetNotifierConfig(c *gin.Context) {
	config, err := h.db.GetNotifierConfig()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get notifier config")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get notifier config"})
		return
	}

	if config == nil {
		c.JSON(http.StatusOK, gin.H{
			"is_enabled": false,
			"chat_id":    "",
			"bot_token":  "",
		})
		return
	}

	config.BotToken = maskKey(config.BotToken)
	c.JSON(http.StatusOK, config)
}

func (h *Handler) UpdateNotifierConfig(c *gin.Context) {
	var req models.NotifierConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	if req.IsEnabled {
		if len(req.BotToken) < 20 || !strings.Contains(req.BotToken, ":") {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid bot token format"})
			return
		}
		if req.ChatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Chat ID is required"})
			return
		}
	}

	if err := h.db.UpdateNotifierConfig(&req); err != nil {
		h.logger.WithError(err).Error("Failed to save notifier config")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to save notifier config"})
		return
	}

	if config, err := h.db.GetNotifierConfig(); err == nil && config != nil {
		h.notifier.UpdateConfig(config)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notifier configuration updated"})
}

// markRejected records a submission that never made it onto the queue.
func (h *Handler) markRejected(jobID string, cause error) {
	if err := h.store.Update(jobID, func(j *jobs.Job) {
		j.Status = evaluation.StatusFailed
		j.Error = cause.Error()
	}); err != nil {
		h.logger.WithError(err).WithField("job_id", jobID).Error("Failed to mark rejected job")
	}
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return key
	}
	return "••••" + key[len(key)-4:]
}
