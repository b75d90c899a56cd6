// Package handler exposes the leads HTTP surface.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"institute_backend/internal/leads/comms"
	"institute_backend/internal/leads/service"
	"institute_backend/internal/leads/transport"
	"institute_backend/internal/leads/workflow"
	"institute_backend/platform/httpkit"
)

type Handler struct {
	leads    *service.Service
	workflow *workflow.Service
	comms    *comms.Service
}

func New(leads *service.Service, workflowSvc *workflow.Service, commsSvc *comms.Service) *Handler {
	return &Handler{leads: leads, workflow: workflowSvc, comms: commsSvc}
}

// RegisterRoutes mounts the agent-facing lead endpoints.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	leads := protected.Group("/leads")
	{
		leads.POST("", h.create)
		leads.GET("", h.list)
		leads.GET("/:id", h.get)
		leads.PATCH("/:id", h.update)
		leads.PUT("/:id/assign", h.assign)
		leads.POST("/:id/transition", h.transition)
		leads.POST("/:id/withdraw", h.withdraw)
		leads.POST("/:id/reactivate", h.reactivate)
		leads.POST("/:id/communications", h.logCommunication)
		leads.GET("/:id/communications", h.listCommunications)
		leads.POST("/bulk/status", h.bulkStatus)
	}
}

func (h *Handler) create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.leads.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.leads.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) list(c *gin.Context) {
	var query transport.ListLeadsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query parameters", err.Error())
		return
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.PageSize == 0 {
		query.PageSize = 50
	}

	leads, total, err := h.leads.List(c.Request.Context(), query)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, transport.LeadListResponse{
		Leads:    items,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.leads.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) assign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var agentID *uuid.UUID
	if req.AgentID != nil {
		parsed, err := uuid.Parse(*req.AgentID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
			return
		}
		agentID = &parsed
	}

	lead, err := h.leads.Assign(c.Request.Context(), id, agentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) transition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.workflow.Transition(c.Request.Context(), id, req.Status, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) withdraw(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.workflow.Withdraw(c.Request.Context(), id, req.Reason, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) reactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.workflow.Reactivate(c.Request.Context(), id, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) bulkStatus(c *gin.Context) {
	var req transport.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.LeadIDs))
	for _, raw := range req.LeadIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid lead id: "+raw, nil)
			return
		}
		ids = append(ids, id)
	}

	results := h.workflow.ApplyBulk(c.Request.Context(), ids, req.Status, actorID(c))

	response := transport.BulkStatusResponse{Results: make([]transport.BulkItemResult, 0, len(results))}
	for _, result := range results {
		item := transport.BulkItemResult{LeadID: result.LeadID.String(), OK: result.Err == nil}
		if result.Err != nil {
			item.Error = result.Err.Error()
			response.Failed++
		} else {
			response.Succeeded++
		}
		response.Results = append(response.Results, item)
	}

	// The batch itself always succeeds; per-item failures live in the body.
	httpkit.OK(c, response)
}

func (h *Handler) logCommunication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.LogCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	comm, err := h.comms.Log(c.Request.Context(), id, req, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToCommunicationResponse(comm))
}

func (h *Handler) listCommunications(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 50)

	entries, total, err := h.comms.History(c.Request.Context(), id, page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.CommunicationResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, transport.ToCommunicationResponse(entry))
	}
	httpkit.OK(c, transport.CommunicationListResponse{
		Communications: items,
		Total:          total,
		Page:           page,
		PageSize:       pageSize,
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) *uuid.UUID {
	value, ok := c.Get(httpkit.ContextAgentIDKey)
	if !ok {
		return nil
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	var value int
	for _, r := range raw {
		if r < '0' || r > '9' {
			return fallback
		}
		value = value*10 + int(r-'0')
	}
	if value == 0 {
		return fallback
	}
	return value
}
