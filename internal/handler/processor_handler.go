package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/dto"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/internal/routing"
)

// ProcessorHandler exposes the processor roster and its routing state
type ProcessorHandler struct {
	processors *registry.ProcessorRegistry
}

// NewProcessorHandler creates a new ProcessorHandler
func NewProcessorHandler(processors *registry.ProcessorRegistry) *ProcessorHandler {
	return &ProcessorHandler{processors: processors}
}

// ListProcessors handles GET /processors
func (h *ProcessorHandler) ListProcessors(c *gin.Context) {
	procs := h.processors.List()
	responses := make([]*dto.ProcessorResponse, len(procs))
	for i, p := range procs {
		responses[i] = dto.FromProcessor(p, routing.Score(p))
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(&dto.ProcessorListResponse{
		Processors: responses,
		Total:      len(responses),
	}))
}

// GetProcessor handles GET /processors/:code
func (h *ProcessorHandler) GetProcessor(c *gin.Context) {
	code := c.Param("code")
	p, err := h.processors.Lookup(code)
	if err != nil {
		if errors.Is(err, domain.ErrProcessorNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "processor not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromProcessor(p, routing.Score(p))))
}

// UpdateProcessorState handles PATCH /processors/:code/state
// Administrative enable/disable/maintenance toggle
func (h *ProcessorHandler) UpdateProcessorState(c *gin.Context) {
	code := c.Param("code")

	var req dto.UpdateProcessorStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", err.Error()))
		return
	}

	err := h.processors.Update(code, func(p *domain.Processor) {
		p.OperatingState = domain.OperatingState(req.OperatingState)
	})
	if err != nil {
		if errors.Is(err, domain.ErrProcessorNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "processor not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("UPDATE_FAILED", err.Error()))
		return
	}

	p, _ := h.processors.Lookup(code)
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromProcessor(p, routing.Score(p))))
}
