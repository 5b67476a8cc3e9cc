package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/llm"
)

// Summarizer condenses an arbitrarily long market report into a bounded-size
// digest with a single completion call. Feeding the raw report straight into
// the final composition call is what caused report generation to time out;
// summarizing first bounds the Stage-2 prompt regardless of report length.
type Summarizer struct {
	llm       llm.Completer
	maxTokens int
	maxChars  int
	timeout   time.Duration
	logger    *logrus.Logger
}

func NewSummarizer(logger *logrus.Logger, completer llm.Completer, maxTokens, maxChars int, timeout time.Duration) *Summarizer {
	return &Summarizer{
		llm:       completer,
		maxTokens: maxTokens,
		maxChars:  maxChars,
		timeout:   timeout,
		logger:    logger,
	}
}

// Summarize must only be invoked with a non-empty report. An empty digest from
// the model is an error: it must never be confusable with "no report provided".
func (s *Summarizer) Summarize(ctx context.Context, reportText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := s.buildPrompt(reportText)

	digest, err := s.llm.Complete(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("report summarization failed: %w", err)
	}

	digest = strings.TrimSpace(digest)
	if digest == "" {
		return "", errors.New("report summarization returned an empty digest")
	}

	s.logger.WithFields(logrus.Fields{
		"report_chars": len(reportText),
		"digest_chars": len(digest),
	}).Info("RP Data summarized")

	return digest, nil
}

func (s *Summarizer) buildPrompt(reportText string) string {
	var b strings.Builder
	b.WriteString("You are a real estate market analyst. Condense the following property market report into a digest of the key facts a valuer needs: comparable sales with prices, median price, days on market, clearance rate, growth figures, and risk factors.\n\n")
	fmt.Fprintf(&b, "Keep the digest under %d characters. Plain text, no preamble.\n\n", s.maxChars)
	b.WriteString("MARKET REPORT:\n")
	b.WriteString(reportText)
	return b.String()
}
