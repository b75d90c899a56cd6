// Package leads assembles the lead lifecycle module.
package leads

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"institute_backend/internal/leads/comms"
	"institute_backend/internal/leads/handler"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/leads/service"
	"institute_backend/internal/leads/workflow"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// Module bundles the lead repositories, services and HTTP handler.
type Module struct {
	Repo     *repository.Repository
	Service  *service.Service
	Workflow *workflow.Service
	Comms    *comms.Service

	handler *handler.Handler
}

// New wires the module. The scheduler may be nil when deferred reminders are
// not wanted (e.g., in the worker binary itself).
func New(pool *pgxpool.Pool, scheduler comms.Scheduler, bus platformevents.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	leadService := service.New(repo, bus, log)
	workflowService := workflow.New(repo, bus, log)
	commsService := comms.New(repo, scheduler, bus, log)

	return &Module{
		Repo:     repo,
		Service:  leadService,
		Workflow: workflowService,
		Comms:    commsService,
		handler:  handler.New(leadService, workflowService, commsService),
	}
}

// RegisterRoutes mounts the module's endpoints on the authenticated group.
func (m *Module) RegisterRoutes(protected *gin.RouterGroup) {
	m.handler.RegisterRoutes(protected)
}
