package ingestion

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Handler serves the ingestion HTTP surface (SPEC_FULL.md §18).
type Handler struct {
	validator    *Validator
	publisher    *Publisher
	maxBatchSize int
}

func NewHandler(validator *Validator, publisher *Publisher, maxBatchSize int) *Handler {
	return &Handler{validator: validator, publisher: publisher, maxBatchSize: maxBatchSize}
}

type ingestResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func (h *Handler) IngestOne(c *gin.Context) {
	var m eventbus.MetricEvent
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, ingestResponse{Success: false, Message: "malformed request body", Errors: []string{err.Error()}})
		return
	}

	if errs := h.validator.Validate(&m); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, ingestResponse{Success: false, Message: "validation failed", Errors: errs})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), m); err != nil {
		log.Error().Err(err).Str("service", m.ServiceName).Msg("ingestion: publish failed")
		c.JSON(http.StatusBadGateway, ingestResponse{Success: false, Message: "failed to accept metric"})
		return
	}

	c.JSON(http.StatusAccepted, ingestResponse{Success: true})
}

func (h *Handler) IngestBatch(c *gin.Context) {
	var batch []eventbus.MetricEvent
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, ingestResponse{Success: false, Message: "malformed request body", Errors: []string{err.Error()}})
		return
	}

	if len(batch) == 0 || len(batch) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, ingestResponse{
			Success: false,
			Message: "batch size must be between 1 and the configured maximum",
		})
		return
	}

	var errs []string
	for i := range batch {
		if fieldErrs := h.validator.Validate(&batch[i]); len(fieldErrs) > 0 {
			for _, e := range fieldErrs {
				errs = append(errs, batch[i].ServiceName+"["+strconv.Itoa(i)+"]: "+e)
			}
		}
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, ingestResponse{Success: false, Message: "validation failed", Errors: errs})
		return
	}

	ctx := c.Request.Context()
	for _, m := range batch {
		if err := h.publisher.Publish(ctx, m); err != nil {
			log.Error().Err(err).Str("service", m.ServiceName).Msg("ingestion: batch publish failed")
			c.JSON(http.StatusBadGateway, ingestResponse{Success: false, Message: "failed to accept one or more metrics"})
			return
		}
	}

	c.JSON(http.StatusAccepted, ingestResponse{Success: true})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
