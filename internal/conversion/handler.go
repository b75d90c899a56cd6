package conversion

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"institute_backend/platform/httpkit"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendCodeRequest struct {
	Phone string `json:"phone" binding:"required,irmobile"`
}

type sendCodeResponse struct {
	Phone             string `json:"phone"`
	ExpiresAt         string `json:"expiresAt"`
	ResendAvailableAt string `json:"resendAvailableAt"`
}

type verifyConvertRequest struct {
	Phone string `json:"phone" binding:"required,irmobile"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type verifyConvertResponse struct {
	UserID           uuid.UUID `json:"userId"`
	LeadID           uuid.UUID `json:"leadId"`
	Phone            string    `json:"phone"`
	AlreadyConverted bool      `json:"alreadyConverted"`
}

// RegisterRoutes mounts the public, OTP-rate-limited conversion endpoints.
func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	otp := public.Group("/leads/:id/otp")
	{
		otp.POST("/send", h.sendCode)
		otp.POST("/verify-convert", h.verifyConvert)
	}
}

func (h *Handler) sendCode(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.service.RequestCode(c.Request.Context(), leadID, req.Phone)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, sendCodeResponse{
		Phone:             result.Phone,
		ExpiresAt:         result.ExpiresAt.UTC().Format(time.RFC3339),
		ResendAvailableAt: result.ResendAvailableAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) verifyConvert(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req verifyConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.service.VerifyAndConvert(c.Request.Context(), leadID, req.Phone, req.Code)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.AlreadyConverted {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, verifyConvertResponse{
		UserID:           result.User.ID,
		LeadID:           result.Lead.ID,
		Phone:            result.User.Phone,
		AlreadyConverted: result.AlreadyConverted,
	})
}
