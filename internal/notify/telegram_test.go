package notify

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"propeval/server/internal/models"
)

func TestSendMessage_SkipsWhenUnconfigured(t *testing.T) {
	s := NewService(logrus.New())
	assert.NoError(t, s.SendMessage("hello"))
}

func TestSendMessage_SkipsWhenDisabled(t *testing.T) {
	s := NewService(logrus.New())
	s.UpdateConfig(&models.NotifierConfig{IsEnabled: false, BotToken: "x", ChatID: "y"})
	assert.NoError(t, s.SendMessage("hello"))
}

func TestSendMessage_MissingCredentials(t *testing.T) {
	s := NewService(logrus.New())

	s.UpdateConfig(&models.NotifierConfig{IsEnabled: true, ChatID: "y"})
	assert.Error(t, s.SendMessage("hello"))

	s.UpdateConfig(&models.NotifierConfig{IsEnabled: true, BotToken: "x"})
	assert.Error(t, s.SendMessage("hello"))
}

func TestNotifyEvaluationFinished_IgnoresUnknownStatus(t *testing.T) {
	s := NewService(logrus.New())
	s.UpdateConfig(&models.NotifierConfig{IsEnabled: true, BotToken: "x", ChatID: "y"})

	err := s.NotifyEvaluationFinished(&models.Property{Location: "Richmond VIC"}, "in_progress", "")
	assert.NoError(t, err)
}
