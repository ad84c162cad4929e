package model

import (
	"fmt"
	"slices"
	"sort"
)

// Variant identifies one of the four versions of a source artifact in a
// merge scenario.
type Variant string

const (
	VariantBase  Variant = "base"
	VariantLeft  Variant = "left"
	VariantRight Variant = "right"
	VariantMerge Variant = "merge"
)

// Variants lists every variant in canonical iteration order.
var Variants = []Variant{VariantBase, VariantLeft, VariantRight, VariantMerge}

// ParseVariant converts a branch name into a Variant.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown branch variant %q", s)
}

// Index returns the position of v in the canonical order, or -1.
func (v Variant) Index() int {
	for i, c := range Variants {
		if c == v {
			return i
		}
	}
	return -1
}

func (v Variant) String() string {
	return string(v)
}

// SortVariants returns vs deduplicated and ordered canonically. Unknown
// variants are dropped.
func SortVariants(vs []Variant) []Variant {
	out := make([]Variant, 0, len(vs))
	for _, v := range vs {
		if v.Index() >= 0 && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Index() < out[j].Index()
	})
	return out
}
