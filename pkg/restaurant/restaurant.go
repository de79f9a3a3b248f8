// Package restaurant defines the restaurant entity shared by the record
// store, the cache and the directory coordinator.
package restaurant

import (
	"fmt"
	"math"
	"strings"
)

// Restaurant is the durable record and the cached value.
type Restaurant struct {
	// Name is the primary key.
	Name string `json:"name"`

	Cuisine string `json:"cuisine"`
	Region  string `json:"region"`

	// Rating is the mean of all submitted ratings.
	Rating float64 `json:"rating"`

	// NumRatings is the number of submitted ratings.
	NumRatings int `json:"numRatings"`
}

// View is the client-facing projection of a Restaurant.
type View struct {
	Name    string  `json:"name"`
	Cuisine string  `json:"cuisine"`
	Rating  float64 `json:"rating"`
	Region  string  `json:"region"`
}

// New returns a validated, unrated restaurant.
func New(name, cuisine, region string) (Restaurant, error) {
	r := Restaurant{
		Name:    name,
		Cuisine: cuisine,
		Region:  region,
	}
	if err := r.Validate(); err != nil {
		return Restaurant{}, err
	}
	return r, nil
}

// Validate checks the fields required at creation.
func (r Restaurant) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(r.Cuisine) == "":
		return fmt.Errorf("%w: cuisine is required", ErrInvalid)
	case strings.TrimSpace(r.Region) == "":
		return fmt.Errorf("%w: region is required", ErrInvalid)
	}
	return nil
}

// View projects the record into its client-facing form.
func (r Restaurant) View() View {
	return View{
		Name:    r.Name,
		Cuisine: r.Cuisine,
		Rating:  r.Rating,
		Region:  r.Region,
	}
}

// WithRating returns a copy of r with the submitted rating folded into the
// running mean.
func (r Restaurant) WithRating(submitted float64) Restaurant {
	r.Rating, r.NumRatings = NextRating(r.Rating, r.NumRatings, submitted)
	return r
}

// NextRating computes the incremental mean after one more submission.
// A negative count is treated as zero.
func NextRating(current float64, count int, submitted float64) (float64, int) {
	if count < 0 {
		count = 0
	}
	n := float64(count)
	return (current*n + submitted) / (n + 1), count + 1
}

// ValidateRating rejects ratings that cannot take part in a mean.
func ValidateRating(rating float64) error {
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return fmt.Errorf("%w: rating must be a finite number", ErrInvalid)
	}
	return nil
}
