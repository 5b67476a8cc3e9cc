package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
)

// Service sends Telegram notifications when evaluations reach a terminal
// state. Disabled until a configuration is loaded.
type Service struct {
	logger *logrus.Logger
	client *http.Client
	mu     sync.RWMutex
	config *models.NotifierConfig
}

func NewService(logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Service) UpdateConfig(config *models.NotifierConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// SendMessage sends a message to the configured Telegram chat.
func (s *Service) SendMessage(message string) error {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	if config == nil || !config.IsEnabled {
		return nil
	}

	if config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}
	if config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		default:
			return fmt.Errorf("Telegram API error (%d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyEvaluationFinished reports a terminal evaluation for a persisted
// property. summary is only set for failures.
func (s *Service) NotifyEvaluationFinished(property *models.Property, status string, summary string) error {
	var message string
	switch status {
	case "completed":
		message = fmt.Sprintf(
			"✅ <b>Evaluation completed</b>\n\n%s\n%d bed / %d bath / %d car",
			property.Location, property.Beds, property.Baths, property.Carpark,
		)
	case "failed":
		message = fmt.Sprintf(
			"❌ <b>Evaluation failed</b>\n\n%s\n%s",
			property.Location, summary,
		)
	default:
		return nil
	}

	return s.SendMessage(message)
}
