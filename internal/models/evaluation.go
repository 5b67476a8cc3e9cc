package models

// Comparable is one sold or listed property used as a market reference point.
type Comparable struct {
	Address      string   `json:"address"`
	Price        *float64 `json:"price,omitempty"`
	Beds         int      `json:"beds,omitempty"`
	Baths        int      `json:"baths,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Status       string   `json:"status"`
	Source       string   `json:"source,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// PriceRange is only present when at least one merged comparable carries a
// known price. It is never defaulted to zero values.
type PriceRange struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
}

type ComparableStats struct {
	SoldCount    int         `json:"sold_count"`
	ListingCount int         `json:"listing_count"`
	TotalFound   int         `json:"total_found"`
	PriceRange   *PriceRange `json:"price_range,omitempty"`
}

// ComparableSet carries the merged comparables and the statistics derived from
// them. Created fresh per evaluation; not persisted beyond the job result.
type ComparableSet struct {
	Statistics ComparableStats `json:"statistics"`
	Properties []Comparable    `json:"properties"`
}

// EvaluationResult is the terminal payload of a successful evaluation.
// ImprovementsDetected holds either the photo-analysis text or the "no photos
// provided" sentinel; PhotosAnalyzed distinguishes the two for callers.
type EvaluationResult struct {
	EvaluationReport     string         `json:"evaluation_report"`
	ComparablesData      *ComparableSet `json:"comparables_data"`
	ImprovementsDetected string         `json:"improvements_detected"`
	PricePerSqm          *float64       `json:"price_per_sqm,omitempty"`
	PhotosAnalyzed       bool           `json:"photos_analyzed"`
}
