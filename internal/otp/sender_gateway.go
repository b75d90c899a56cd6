package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"institute_backend/platform/config"
	"institute_backend/platform/logger"
)

// GatewaySender posts codes to an HTTP SMS gateway.
type GatewaySender struct {
	url        string
	apiKey     string
	senderLine string
	client     *http.Client
	log        *logger.Logger
}

func NewGatewaySender(cfg config.SMSConfig, log *logger.Logger) *GatewaySender {
	return &GatewaySender{
		url:        cfg.GetSMSGatewayURL(),
		apiKey:     cfg.GetSMSAPIKey(),
		senderLine: cfg.GetSMSSenderLine(),
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type gatewayRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func (s *GatewaySender) Send(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(gatewayRequest{
		Sender:    s.senderLine,
		Recipient: phone,
		Message:   fmt.Sprintf("Your verification code is %s", code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
