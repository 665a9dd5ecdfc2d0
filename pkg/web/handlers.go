package web

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/registry"
)

type APIHandlers struct {
	engine    *engine.Engine
	steps     *registry.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	steps *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    eng,
		steps:     steps,
		validator: validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.engine.GetRegisteredWorkflows(c.Context())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.engine.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

// RegisterWorkflow validates and stores a workflow definition. The full
// definition shape is validated by the workflow registry; step parameters
// are checked against the step catalog schemas.
func (h *APIHandlers) RegisterWorkflow(c fiber.Ctx) error {
	var def models.WorkflowDefinition
	if err := c.Bind().JSON(&def); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.engine.RegisterWorkflow(c.Context(), &def); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

// ExecuteWorkflow queues one execution and returns its id immediately.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	executionID, err := h.engine.ExecuteWorkflow(c.Context(), id, req.TriggeredBy, req.TriggerData)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(ExecuteWorkflowResponse{
		ExecutionID: executionID,
		Status:      string(models.ExecutionStatusPending),
	})
}

func (h *APIHandlers) GetWorkflowAnalytics(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	analytics, err := h.engine.GetWorkflowAnalytics(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(AnalyticsResponse{
		WorkflowAnalytics: analytics,
		SuccessRate:       analytics.SuccessRate(),
	})
}

func (h *APIHandlers) GetIntegrations(c fiber.Ctx) error {
	capabilities := h.engine.GetRegisteredIntegrations()

	return c.JSON(fiber.Map{
		"integrations": capabilities,
		"total_count":  len(capabilities),
	})
}

func (h *APIHandlers) RegisterIntegration(c fiber.Ctx) error {
	var capability models.IntegrationCapability
	if err := c.Bind().JSON(&capability); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.engine.RegisterIntegration(c.Context(), &capability); err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(capability)
}

// UnregisterIntegration removes an integration. Removal is idempotent, so
// unknown ids return 204 as well.
func (h *APIHandlers) UnregisterIntegration(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Integration ID is required")
	}

	h.engine.UnregisterIntegration(c.Context(), id)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateIntegrationState(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Integration ID is required")
	}

	var req UpdateIntegrationStateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := integration.StateUpdate{
		Available:          req.Available,
		AvgResponseTimeMs:  req.AvgResponseTimeMs,
		RateLimitRemaining: req.RateLimitRemaining,
		LastError:          req.LastError,
	}

	if req.Status != nil {
		status := models.ConnectionStatus(*req.Status)
		update.Status = &status
	}

	h.engine.UpdateIntegrationState(c.Context(), id, update)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetIntegrationHealth(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Integration ID is required")
	}

	health, err := h.engine.GetIntegrationHealth(id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(health)
}

func (h *APIHandlers) GetRoutes(c fiber.Ctx) error {
	routes, err := h.engine.GetRegisteredRoutes(c.Context())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"routes":      routes,
		"total_count": len(routes),
	})
}

func (h *APIHandlers) RegisterRoute(c fiber.Ctx) error {
	var route models.IntegrationRoute
	if err := c.Bind().JSON(&route); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.engine.RegisterRoute(c.Context(), &route); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(route)
}

// ResolveRoute returns the best enabled route for an integration pair and
// payload. No matching route is not an error; found=false says so.
func (h *APIHandlers) ResolveRoute(c fiber.Ctx) error {
	var req ResolveRouteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	route, found := h.engine.FindOptimalRoute(c.Context(), req.From, req.To, req.Data)

	return c.JSON(ResolveRouteResponse{Found: found, Route: route})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.engine.GetExecution(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetActiveExecutions(c fiber.Ctx) error {
	executions, err := h.engine.GetActiveExecutions(c.Context())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.engine.CancelExecution(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PauseExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.engine.PauseExecution(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.engine.ResumeExecution(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerWebhook activates a workflow's webhook trigger: the request body
// becomes the trigger data. Workflows without a webhook trigger
// declaration cannot be started this way.
func (h *APIHandlers) TriggerWebhook(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.engine.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	if !hasTrigger(def, models.TriggerTypeWebhook) {
		return notFound(c, "workflow declares no webhook trigger")
	}

	triggerData := make(map[string]any)
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&triggerData); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	executionID, err := h.engine.ExecuteWorkflow(c.Context(), id, "webhook", triggerData)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(ExecuteWorkflowResponse{
		ExecutionID: executionID,
		Status:      string(models.ExecutionStatusPending),
	})
}

func hasTrigger(def *models.WorkflowDefinition, triggerType models.TriggerType) bool {
	for _, trigger := range def.Triggers {
		if trigger.Type == triggerType {
			return true
		}
	}

	return false
}

// GetStepTypes serves the step catalog: every registered step type with
// its parameter schema.
func (h *APIHandlers) GetStepTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"steps": h.steps.StepSchemas(),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	health := h.engine.GetSystemHealth(c.Context())

	httpStatus := http.StatusOK
	if health.Status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(health)
}
