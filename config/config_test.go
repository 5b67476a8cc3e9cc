package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "8001", cfg.Server.Port)
	assert.Equal(t, "database/propeval.db", cfg.Server.DatabasePath)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "gpt-4o", cfg.LLM.VisionModel)
	assert.Equal(t, 60*time.Second, cfg.LLM.CompletionTimeout)
	assert.Equal(t, 45*time.Second, cfg.LLM.VisionTimeout)
	assert.Equal(t, 30*time.Second, cfg.Comparables.FetchTimeout)
	assert.Equal(t, 2, cfg.Evaluation.WorkerCount)
	assert.Equal(t, 32, cfg.Evaluation.QueueSize)
	assert.Equal(t, 350, cfg.Evaluation.SummaryMaxTokens)
	assert.Equal(t, 1000, cfg.Evaluation.SummaryMaxChars)
	assert.Equal(t, time.Hour, cfg.Evaluation.JobTTL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("EVAL_WORKER_COUNT", "8")
	t.Setenv("LLM_COMPLETION_TIMEOUT", "90s")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Evaluation.WorkerCount)
	assert.Equal(t, 90*time.Second, cfg.LLM.CompletionTimeout)
}
