package model

import (
	"encoding/json"
	"math"
)

// wholeNumber decodes any JSON number, rounding to the nearest integer.
// Generated output often writes counts as 4.0.
type wholeNumber int

func (n *wholeNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = wholeNumber(math.Round(f))
	return nil
}

func (n *wholeNumber) apply(dst *int) {
	if n != nil {
		*dst = int(*n)
	}
}

// UnmarshalJSON accepts float-formatted servings and times.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	aux := struct {
		*plain
		Servings  *wholeNumber `json:"servings"`
		PrepTime  *wholeNumber `json:"prep_time"`
		CookTime  *wholeNumber `json:"cook_time"`
		TotalTime *wholeNumber `json:"total_time"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	aux.Servings.apply(&r.Servings)
	aux.PrepTime.apply(&r.PrepTime)
	aux.CookTime.apply(&r.CookTime)
	aux.TotalTime.apply(&r.TotalTime)
	return nil
}

// UnmarshalJSON accepts float-formatted order and duration.
func (s *CookingStep) UnmarshalJSON(data []byte) error {
	type plain CookingStep
	aux := struct {
		*plain
		Order           *wholeNumber `json:"order"`
		DurationMinutes *wholeNumber `json:"duration_minutes"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	aux.Order.apply(&s.Order)
	if aux.DurationMinutes != nil {
		d := int(*aux.DurationMinutes)
		s.DurationMinutes = &d
	}
	return nil
}
