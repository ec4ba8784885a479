package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Variant struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// Experiment is a weighted split test scoped to one chatbot. Variants live in
// a jsonb column; assignment is a pure function of visitor and experiment, so
// no per-visitor row is ever stored.
type Experiment struct {
	ID        uuid.UUID `json:"id"`
	ChatbotID uuid.UUID `json:"chatbot_id"`
	Name      string    `json:"name"`
	Variants  []Variant `json:"variants"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment pairs an experiment with the variant a visitor landed on.
type Assignment struct {
	Experiment string `json:"experiment"`
	Variant    string `json:"variant"`
}

// ValidateVariants rejects variant sets the assignment function cannot
// bucket: empty sets, blank or duplicate names, non-positive weights.
func ValidateVariants(variants []Variant) error {
	if len(variants) == 0 {
		return fmt.Errorf("experiment needs at least one variant")
	}
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Name == "" {
			return fmt.Errorf("variant name is required")
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variant name %q", v.Name)
		}
		seen[v.Name] = true
		if v.Weight <= 0 {
			return fmt.Errorf("variant %q weight must be positive", v.Name)
		}
	}
	return nil
}
