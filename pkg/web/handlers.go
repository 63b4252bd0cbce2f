// Package web provides HTTP handlers and REST API endpoints for the
// execution history service.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/planstudio/flowhistory/pkg/filter"
	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/services"
	"github.com/planstudio/flowhistory/pkg/store"
)

type APIHandlers struct {
	historyService *services.History
	validator      *validator.Validate
}

func NewAPIHandlers(historyService *services.History, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		historyService: historyService,
		validator:      validator,
	}
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req, err := h.parseListExecutionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.historyService.ListExecutions(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  result.Executions,
		"total_count": result.TotalCount,
		"total_pages": result.TotalPages,
		"pagination": fiber.Map{
			"page":      result.Page,
			"page_size": result.PageSize,
		},
	})
}

// parseListExecutionsRequest parses and validates query parameters for
// listing executions.
func (h *APIHandlers) parseListExecutionsRequest(c fiber.Ctx) (*services.ListExecutionsRequest, error) {
	req := &services.ListExecutionsRequest{}

	f, err := parseFilter(c)
	if err != nil {
		return nil, err
	}

	req.Filter = f

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		req.Page = page
	}

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		pageSize, err := strconv.Atoi(pageSizeStr)
		if err != nil {
			return nil, err
		}

		req.PageSize = pageSize
	}

	return req, nil
}

func parseFilter(c fiber.Ctx) (filter.Filter, error) {
	var f filter.Filter

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return f, err
		}

		f.From = &from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return f, err
		}

		f.To = &to
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ExecutionStatus(statusStr)
		f.Status = &status
	}

	f.FlowID = c.Query("flow_id")
	f.FreeText = c.Query("q")

	return f, nil
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.historyService.GetExecution(c.Context(), id)
	if err != nil {
		if store.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	logs, err := h.historyService.ExportLogs(c.Context(), id)
	if err != nil {
		if store.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)

	return c.SendString(logs)
}

func (h *APIHandlers) CreateExecution(c fiber.Ctx) error {
	var req IngestExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	timestamp := time.Now().UTC()

	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return badRequest(c, "Invalid timestamp: "+err.Error())
		}

		timestamp = parsed
	}

	execution := &models.FlowExecution{
		ID:             req.ID,
		FlowID:         req.FlowID,
		FlowName:       req.FlowName,
		Timestamp:      timestamp,
		Status:         models.ExecutionStatus(req.Status),
		Trigger:        models.TriggerType(req.Trigger),
		TriggerDetails: req.TriggerDetails,
		Client:         req.Client,
		DurationMS:     req.DurationMS,
		StepsCompleted: req.StepsCompleted,
		TotalSteps:     req.TotalSteps,
		Error:          req.Error,
		Logs:           req.Logs,
		Steps:          req.Steps,
		InputPayload:   req.InputPayload,
		OutputPayload:  req.OutputPayload,
		Variables:      req.Variables,
	}

	err := h.historyService.IngestExecution(c.Context(), execution)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) TransitionExecutionStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req TransitionStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	patch := models.StatusPatch{
		DurationMS:     req.DurationMS,
		StepsCompleted: req.StepsCompleted,
		Error:          req.Error,
		Logs:           req.Logs,
		Steps:          req.Steps,
		OutputPayload:  req.OutputPayload,
	}

	updated, err := h.historyService.TransitionExecution(c.Context(), id, models.ExecutionStatus(req.Status), patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteExecutions(c fiber.Ctx) error {
	beforeStr := c.Query("before")
	if beforeStr == "" {
		return badRequest(c, "Query parameter 'before' is required")
	}

	before, err := time.Parse(time.RFC3339, beforeStr)
	if err != nil {
		return badRequest(c, "Invalid 'before' timestamp: "+err.Error())
	}

	pruned, err := h.historyService.PruneBefore(c.Context(), before)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"pruned": pruned,
	})
}

func (h *APIHandlers) GetSummaryStats(c fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	summary, err := h.historyService.GetSummaryStats(c.Context(), f)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetTimeSeries(c fiber.Ctx) error {
	days := 0

	if daysStr := c.Query("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			return badRequest(c, "Invalid 'days' parameter: "+err.Error())
		}

		days = parsed
	}

	buckets, err := h.historyService.GetTimeSeries(c.Context(), days)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"buckets": buckets,
	})
}

func (h *APIHandlers) GetErrorAnalysis(c fiber.Ctx) error {
	topK, err := parseTopK(c)
	if err != nil {
		return badRequest(c, "Invalid 'top' parameter: "+err.Error())
	}

	clusters, err := h.historyService.GetErrorAnalysis(c.Context(), topK)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"errors": clusters,
	})
}

func (h *APIHandlers) GetTopFailingFlows(c fiber.Ctx) error {
	topK, err := parseTopK(c)
	if err != nil {
		return badRequest(c, "Invalid 'top' parameter: "+err.Error())
	}

	flows, err := h.historyService.GetTopFailingFlows(c.Context(), topK)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows": flows,
	})
}

func parseTopK(c fiber.Ctx) (int, error) {
	topStr := c.Query("top")
	if topStr == "" {
		return 0, nil
	}

	return strconv.Atoi(topStr)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.historyService.ListFlows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows": flows,
	})
}

func (h *APIHandlers) EvaluateAlerts(c fiber.Ctx) error {
	var req EvaluateAlertsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	events, err := h.historyService.EvaluateAlerts(c.Context(), req.Rules)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"events": events,
	})
}

func (h *APIHandlers) GetHealth(c fiber.Ctx) error {
	message, healthy := h.historyService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if healthy {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
