package conversion

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"institute_backend/internal/accounts"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/otp"
	"institute_backend/internal/otp/store"
	"institute_backend/platform/config"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// Config is the slice of application configuration this module needs.
type Config interface {
	config.OTPConfig
	config.SMSConfig
}

// Module bundles the OTP challenge service and the conversion coordinator.
type Module struct {
	OTP      *otp.Service
	Service  *Service
	Accounts *accounts.Repository

	handler *Handler
}

func New(pool *pgxpool.Pool, redisClient *redis.Client, leadsRepo *repository.Repository, cfg Config, bus platformevents.Bus, log *logger.Logger) *Module {
	accountsRepo := accounts.New(pool)
	challengeStore := store.NewRedisStore(redisClient)
	otpService := otp.NewService(challengeStore, otp.NewSender(cfg, log), cfg, log)
	uow := NewPgUnitOfWork(pool, leadsRepo, accountsRepo)
	conversionService := NewService(otpService, leadsRepo, accountsRepo, uow, bus, log)

	return &Module{
		OTP:      otpService,
		Service:  conversionService,
		Accounts: accountsRepo,
		handler:  NewHandler(conversionService),
	}
}

// RegisterRoutes mounts the public conversion endpoints. The caller applies
// the OTP rate limiter to the group.
func (m *Module) RegisterRoutes(public *gin.RouterGroup) {
	m.handler.RegisterRoutes(public)
}
