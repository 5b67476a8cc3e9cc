package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ImageList stores encoded photo blobs as a JSON array in a single text column.
type ImageList []string

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *ImageList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into ImageList", value)
	}
}

// Property is the persisted property record. Evaluation progress is tracked on
// the record itself so status polling works against the property identifier.
type Property struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Location     string    `json:"location" gorm:"not null"`
	PropertyType string    `json:"property_type"`
	Beds         int       `json:"beds"`
	Baths        int       `json:"baths"`
	Carpark      int       `json:"carpark"`
	Size         float64   `json:"size"`
	Price        float64   `json:"price"`
	Features     string    `json:"features"`
	Images       ImageList `json:"images" gorm:"type:text"`
	RPData       string    `json:"rp_data,omitempty"`

	EvaluationReport     string   `json:"evaluation_report,omitempty"`
	EvaluationStatus     string   `json:"evaluation_status,omitempty" gorm:"index"`
	EvaluationStage      string   `json:"evaluation_stage,omitempty"`
	ImprovementsDetected string   `json:"improvements_detected,omitempty"`
	PricePerSqm          *float64 `json:"price_per_sqm,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PropertyRequest is the payload for creating a property or submitting a quick
// evaluation. Counts are pointers so a legitimate zero passes required binding.
type PropertyRequest struct {
	Beds         *int     `json:"beds" binding:"required"`
	Baths        *int     `json:"baths" binding:"required"`
	Carpark      *int     `json:"carpark" binding:"required"`
	Location     string   `json:"location" binding:"required"`
	Price        float64  `json:"price"`
	Size         float64  `json:"size"`
	PropertyType string   `json:"property_type"`
	Features     string   `json:"features"`
	Images       []string `json:"images"`
}

// ToProperty builds an unpersisted property record from the request.
func (r *PropertyRequest) ToProperty() *Property {
	return &Property{
		Beds:         *r.Beds,
		Baths:        *r.Baths,
		Carpark:      *r.Carpark,
		Location:     r.Location,
		Price:        r.Price,
		Size:         r.Size,
		PropertyType: r.PropertyType,
		Features:     r.Features,
		Images:       ImageList(r.Images),
	}
}

// RPDataRequest attaches a free-text market report to a property.
type RPDataRequest struct {
	Report string `json:"report" binding:"required"`
}
