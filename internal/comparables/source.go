package comparables

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
)

// Query describes the target property the comparables should resemble.
type Query struct {
	Location     string
	Beds         int
	Baths        int
	PropertyType string
}

// Source is a single comparable-property connector. Implementations call an
// external service and may fail or exceed their budget.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]models.Comparable, error)
}

// ListingsAPISource fetches comparables from a JSON listings endpoint.
type ListingsAPISource struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logrus.Logger
}

func NewListingsAPISource(logger *logrus.Logger, name, endpoint, apiKey string) *ListingsAPISource {
	return &ListingsAPISource{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func (s *ListingsAPISource) Name() string {
	return s.name
}

type listingEntry struct {
	Address      string   `json:"address"`
	Price        *float64 `json:"price"`
	Beds         int      `json:"beds"`
	Baths        int      `json:"baths"`
	PropertyType string   `json:"property_type"`
	Status       string   `json:"status"`
	URL          string   `json:"url"`
}

func (s *ListingsAPISource) Fetch(ctx context.Context, q Query) ([]models.Comparable, error) {
	params := url.Values{
		"location":      []string{q.Location},
		"beds":          []string{strconv.Itoa(q.Beds)},
		"baths":         []string{strconv.Itoa(q.Baths)},
		"property_type": []string{q.PropertyType},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create listings request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listings endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read listings response: %w", err)
	}

	var entries []listingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse listings response: %w", err)
	}

	comps := make([]models.Comparable, 0, len(entries))
	for _, e := range entries {
		comps = append(comps, models.Comparable{
			Address:      e.Address,
			Price:        e.Price,
			Beds:         e.Beds,
			Baths:        e.Baths,
			PropertyType: e.PropertyType,
			Status:       e.Status,
			Source:       s.name,
			URL:          e.URL,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"source":   s.name,
		"location": q.Location,
		"found":    len(comps),
	}).Info("Fetched comparable listings")

	return comps, nil
}
