package models

import (
	"errors"
	"fmt"
	"time"
)

// Species and sizes understood by the reference catalog.
const (
	SpeciesDog = "dog"
	SpeciesCat = "cat"

	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"

	SexMale   = "male"
	SexFemale = "female"
)

// Patient is an animal examined by the clinic.
type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Species    string    `json:"species"`
	Breed      string    `json:"breed"`
	Weight     float64   `json:"weight"`
	Size       string    `json:"size"`
	Sex        string    `json:"sex"`
	IsNeutered bool      `json:"is_neutered"`
	OwnerName  string    `json:"owner_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate ensures the patient has a name and known species and size.
func (p *Patient) Validate() error {
	if p.Name == "" {
		return errors.New("name cannot be empty")
	}
	if p.Species != SpeciesDog && p.Species != SpeciesCat {
		return fmt.Errorf("invalid species %q", p.Species)
	}
	switch p.Size {
	case SizeSmall, SizeMedium, SizeLarge:
	default:
		return fmt.Errorf("invalid size %q", p.Size)
	}
	return nil
}
