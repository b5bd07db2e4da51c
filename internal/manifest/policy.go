package manifest

import "errors"

// ErrNoVariants indicates selection over an empty variant list.
var ErrNoVariants = errors.New("no variants to select from")

// SelectionPolicy picks one rendition from a master playlist. The zero
// value selects the highest-bandwidth variant.
type SelectionPolicy struct {
	// PreferredHeight selects an exact vertical-resolution match when one
	// exists, otherwise the variant with the closest height.
	PreferredHeight int
}

func (p SelectionPolicy) Select(variants []Variant) (Variant, error) {
	if len(variants) == 0 {
		return Variant{}, ErrNoVariants
	}

	if p.PreferredHeight > 0 {
		// Exact height match first.
		for _, v := range variants {
			if h := v.Height(); h == p.PreferredHeight {
				return v, nil
			}
		}

		// Closest height among variants with a parseable resolution.
		best := -1
		bestDiff := 0
		for i, v := range variants {
			h := v.Height()
			if h == 0 {
				continue
			}
			diff := h - p.PreferredHeight
			if diff < 0 {
				diff = -diff
			}
			if best == -1 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best >= 0 {
			return variants[best], nil
		}
		// No resolution info anywhere; fall through to bandwidth.
	}

	best := 0
	for i, v := range variants {
		if v.Bandwidth > variants[best].Bandwidth {
			best = i
		}
	}
	return variants[best], nil
}
