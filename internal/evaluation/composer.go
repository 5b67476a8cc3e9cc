package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/comparables"
	"propeval/server/internal/llm"
	"propeval/server/internal/models"
)

// NoPhotosSentinel is surfaced verbatim in prompts and results when a property
// has no images, so callers can tell "no photos" apart from a failed analysis.
const NoPhotosSentinel = "NO PHOTOS PROVIDED"

// notAvailable is rendered wherever a statistic is absent. Formatting a
// missing statistic as $0 is exactly the regression this placeholder prevents.
const notAvailable = "Not available"

// requiredSections are the labeled sections every generated report must carry.
var requiredSections = []string{
	"VALUE RANGE",
	"PRICE/SQM",
	"MARKET POSITION",
	"DAYS TO SELL",
	"PRICING STRATEGY",
}

// Composer builds the final valuation prompt and invokes the completion
// capability once to produce the report.
type Composer struct {
	llm       llm.Completer
	maxTokens int
	timeout   time.Duration
	logger    *logrus.Logger
}

func NewComposer(logger *logrus.Logger, completer llm.Completer, maxTokens int, timeout time.Duration) *Composer {
	return &Composer{
		llm:       completer,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}
}

// Compose generates the valuation report. digest and photoAnalysis may be
// empty / the sentinel respectively; missing statistics render as placeholders.
func (c *Composer) Compose(ctx context.Context, property *models.Property, set *models.ComparableSet, digest, photoAnalysis string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildEvaluationPrompt(property, set, digest, photoAnalysis)

	report, err := c.llm.Complete(ctx, prompt, c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	report = strings.TrimSpace(report)
	if missing := missingSections(report); len(missing) > 0 {
		c.logger.WithField("missing_sections", missing).Warn("Generated report is missing required sections")
	}

	return report, nil
}

// ComposePitch generates a one-shot sales pitch for a stored property.
func (c *Composer) ComposePitch(ctx context.Context, property *models.Property) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("You are a top-performing real estate agent. Write a persuasive sales pitch for the property below. Two to three paragraphs, confident tone, lead with the strongest selling points.\n\n")
	writePropertyFacts(&b, property)

	pitch, err := c.llm.Complete(ctx, b.String(), c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("pitch generation failed: %w", err)
	}
	return strings.TrimSpace(pitch), nil
}

func missingSections(report string) []string {
	var missing []string
	for _, section := range requiredSections {
		if !strings.Contains(report, section) {
			missing = append(missing, section)
		}
	}
	return missing
}

func buildEvaluationPrompt(property *models.Property, set *models.ComparableSet, digest, photoAnalysis string) string {
	var b strings.Builder

	b.WriteString("You are a professional property valuer. Produce a structured valuation report for the property below.\n\n")

	b.WriteString("PROPERTY:\n")
	writePropertyFacts(&b, property)

	b.WriteString("\nCOMPARABLE MARKET DATA:\n")
	stats := set.Statistics
	fmt.Fprintf(&b, "- Sold comparables: %d\n", stats.SoldCount)
	fmt.Fprintf(&b, "- Current listings: %d\n", stats.ListingCount)
	fmt.Fprintf(&b, "- Total found: %d\n", stats.TotalFound)
	if stats.PriceRange != nil {
		fmt.Fprintf(&b, "- Price range: %s - %s (average %s)\n",
			formatMoney(stats.PriceRange.Min),
			formatMoney(stats.PriceRange.Max),
			formatMoney(stats.PriceRange.Avg))
	} else {
		fmt.Fprintf(&b, "- Price range: %s\n", notAvailable)
	}

	if pps := comparables.PricePerSqm(property.Price, property.Size); pps != nil {
		fmt.Fprintf(&b, "- Asking price per sqm: %s/sqm\n", formatMoney(*pps))
	} else {
		fmt.Fprintf(&b, "- Asking price per sqm: %s\n", notAvailable)
	}

	if digest != "" {
		b.WriteString("\nMARKET REPORT DIGEST (RP Data):\n")
		b.WriteString(digest)
		b.WriteString("\n")
	}

	b.WriteString("\nPHOTO ANALYSIS:\n")
	if photoAnalysis == "" {
		photoAnalysis = NoPhotosSentinel
	}
	b.WriteString(photoAnalysis)
	b.WriteString("\n")

	b.WriteString("\nWrite the report with exactly these labeled sections:\n")
	for _, section := range requiredSections {
		fmt.Fprintf(&b, "%s:\n", section)
	}
	b.WriteString("\nWhere market data is marked \"" + notAvailable + "\", say so explicitly instead of inventing figures.\n")

	return b.String()
}

func writePropertyFacts(b *strings.Builder, p *models.Property) {
	fmt.Fprintf(b, "- Location: %s\n", p.Location)
	fmt.Fprintf(b, "- Type: %s\n", p.PropertyType)
	fmt.Fprintf(b, "- Bedrooms: %d, Bathrooms: %d, Car spaces: %d\n", p.Beds, p.Baths, p.Carpark)
	if p.Size > 0 {
		fmt.Fprintf(b, "- Size: %s sqm\n", strconv.FormatFloat(p.Size, 'f', -1, 64))
	} else {
		fmt.Fprintf(b, "- Size: %s\n", notAvailable)
	}
	if p.Price > 0 {
		fmt.Fprintf(b, "- Asking price: %s\n", formatMoney(p.Price))
	} else {
		fmt.Fprintf(b, "- Asking price: %s\n", notAvailable)
	}
	if p.Features != "" {
		fmt.Fprintf(b, "- Features: %s\n", p.Features)
	}
}

// formatMoney renders a dollar amount with thousands separators, e.g. $750,000.
func formatMoney(v float64) string {
	whole := strconv.FormatFloat(v, 'f', 0, 64)

	neg := strings.HasPrefix(whole, "-")
	if neg {
		whole = whole[1:]
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
