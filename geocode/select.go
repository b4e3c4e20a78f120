// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"github.com/audiotour/placegeo/spatial"
	"github.com/audiotour/placegeo/utils/textutils"
	"go.uber.org/zap"
)

// DefaultClasses are the result classes considered place-like.
var DefaultClasses = []string{"tourism", "historic", "amenity", "building", "leisure"}

// DefaultTypes are the result types considered place-like.
var DefaultTypes = []string{
	"museum", "attraction", "church", "bridge", "monument",
	"theatre", "tower", "square", "castle", "memorial",
}

// Categories is the allow-list used to prefer landmarks over street
// addresses and administrative areas.
type Categories struct {
	classes map[string]bool
	types   map[string]bool
}

// NewCategories builds an allow-list. Matching ignores case and accents.
func NewCategories(classes, types []string) Categories {
	c := Categories{
		classes: make(map[string]bool, len(classes)),
		types:   make(map[string]bool, len(types)),
	}

	for _, v := range classes {
		c.classes[textutils.Fold(v)] = true
	}

	for _, v := range types {
		c.types[textutils.Fold(v)] = true
	}

	return c
}

// DefaultCategories returns the allow-list built from DefaultClasses and
// DefaultTypes.
func DefaultCategories() Categories {
	return NewCategories(DefaultClasses, DefaultTypes)
}

// Allows reports whether the candidate's class or type is in the list.
func (c Categories) Allows(cand Candidate) bool {
	return c.classes[textutils.Fold(cand.Class)] || c.types[textutils.Fold(cand.Type)]
}

// Match is the candidate chosen for a query.
type Match struct {
	Point       spatial.Point
	DisplayName string
}

// SelectBest returns the first place-like candidate, or the provider's
// top-ranked one when none is place-like. It returns nil for no candidates.
func SelectBest(cands []Candidate, cats Categories) *Match {
	if len(cands) == 0 {
		return nil
	}

	chosen := cands[0]

	for _, cand := range cands {
		if cats.Allows(cand) {
			chosen = cand

			break
		}
	}

	return &Match{
		Point:       chosen.Point(),
		DisplayName: chosen.DisplayName,
	}
}

// ValidCandidates drops the candidates whose coordinates are out of range.
func ValidCandidates(cands []Candidate) []Candidate {
	ret := make([]Candidate, 0, len(cands))

	for _, cand := range cands {
		if err := cand.Point().Validate(); err != nil {
			zap.L().Debug("dropping candidate with invalid coordinates",
				zap.String("display_name", cand.DisplayName),
				zap.Error(err),
			)

			continue
		}

		ret = append(ret, cand)
	}

	return ret
}
