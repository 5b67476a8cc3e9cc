package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		// Port the API listens on
		Port string `env:"PORT" envDefault:"8001"`

		// Path to the SQLite database file
		DatabasePath string `env:"DATABASE_PATH" envDefault:"database/propeval.db"`
	}

	LLM struct {
		// Base URL of an OpenAI-compatible completion API
		BaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`

		APIKey string `env:"LLM_API_KEY"`

		Model string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

		VisionModel string `env:"LLM_VISION_MODEL" envDefault:"gpt-4o"`

		// Budget for a single completion call; exceeding it fails the stage
		CompletionTimeout time.Duration `env:"LLM_COMPLETION_TIMEOUT" envDefault:"60s"`

		// Budget for a single photo-analysis call
		VisionTimeout time.Duration `env:"LLM_VISION_TIMEOUT" envDefault:"45s"`
	}

	Comparables struct {
		// Optional JSON endpoint serving comparable listings
		EndpointURL string `env:"COMPARABLES_ENDPOINT"`

		// Budget for one connector fetch
		FetchTimeout time.Duration `env:"COMPARABLES_FETCH_TIMEOUT" envDefault:"30s"`
	}

	Evaluation struct {
		// Number of concurrent pipeline workers
		WorkerCount int `env:"EVAL_WORKER_COUNT" envDefault:"2"`

		// Maximum number of queued evaluation tasks
		QueueSize int `env:"EVAL_QUEUE_SIZE" envDefault:"32"`

		// Output bound for the Stage-1 market report digest
		SummaryMaxTokens int `env:"EVAL_SUMMARY_MAX_TOKENS" envDefault:"350"`
		SummaryMaxChars  int `env:"EVAL_SUMMARY_MAX_CHARS" envDefault:"1000"`

		// Output bound for the final valuation report
		ReportMaxTokens int `env:"EVAL_REPORT_MAX_TOKENS" envDefault:"1200"`

		// How long terminal quick-evaluation jobs stay pollable
		JobTTL time.Duration `env:"EVAL_JOB_TTL" envDefault:"1h"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
