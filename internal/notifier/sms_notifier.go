package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/configs"
)

type SMSResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Cost       string `json:"cost"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// SMSSender posts messages to the Africa's Talking messaging API.
type SMSSender struct {
	cfg     config.AfricaTalkingConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func NewSMSSender(cfg config.AfricaTalkingConfig, log *zap.Logger) *SMSSender {
	return &SMSSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: newBreaker("sms", log),
		log:     log,
	}
}

func (s *SMSSender) Send(ctx context.Context, to, message string) error {
	if to == "" {
		return fmt.Errorf("recipient phone number is empty")
	}
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.send(ctx, to, message)
	})
	return err
}

func (s *SMSSender) send(ctx context.Context, to, message string) error {
	data := url.Values{}
	data.Set("username", s.cfg.Username)
	data.Set("to", to)
	data.Set("message", message)
	data.Set("from", s.cfg.SenderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SMSURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS send failed: %w", err)
	}
	defer resp.Body.Close()

	var smsResp SMSResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&smsResp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		fields := []zap.Field{zap.String("to", to), zap.Int("status", resp.StatusCode)}
		if decodeErr == nil {
			fields = append(fields, zap.String("message", smsResp.SMSMessageData.Message))
		}
		s.log.Warn("SMS API returned non-success status", fields...)
		return fmt.Errorf("SMS API returned non-success status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode SMS response: %w", decodeErr)
	}

	s.log.Info("SMS sent", zap.String("to", to), zap.String("message", smsResp.SMSMessageData.Message))
	return nil
}
