package bmh

import (
	"fmt"
	"math"
)

type Gender byte

const (
	Female Gender = 0
	Male   Gender = 1
)

func (g Gender) String() string {
	switch g {
	case Female:
		return "female"
	case Male:
		return "male"
	}
	return fmt.Sprintf("gender(%d)", byte(g))
}

func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UserProfile is the person being measured. The module needs it to turn an
// impedance into a body composition.
type UserProfile struct {
	Age    int     `json:"age"`    // years, 6-99
	Gender Gender  `json:"gender"` // Female or Male
	Height int     `json:"height"` // cm, 90-220
	Weight float64 `json:"weight"` // kg, 10.0-200.0
}

// Validate checks the ranges the composition command can carry.
func (p UserProfile) Validate() error {
	switch {
	case p.Age < 6 || p.Age > 99:
		return fmt.Errorf("%w: age %d out of range 6-99", ErrInvalidInput, p.Age)
	case p.Gender != Female && p.Gender != Male:
		return fmt.Errorf("%w: %v", ErrInvalidInput, p.Gender)
	case p.Height < 90 || p.Height > 220:
		return fmt.Errorf("%w: height %dcm out of range 90-220", ErrInvalidInput, p.Height)
	case math.IsNaN(p.Weight) || p.Weight < 10.0 || p.Weight > 200.0:
		return fmt.Errorf("%w: weight %.1fkg out of range 10.0-200.0", ErrInvalidInput, p.Weight)
	}
	return nil
}

// weight in 0.1kg steps
func (p UserProfile) weightUnits() uint16 {
	return uint16(math.Round(p.Weight * 10))
}
