package catalog

import (
	"encoding/json"
	"fmt"

	"quickview-proxy/internal/model"
)

// Parse decodes a product document and normalizes it.
// The returned error is a decode error (product is nil) or a *model.StructuralError
// (product is usable in single-variant mode).
func Parse(data []byte) (*model.Product, error) {
	var raw RawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding product: %w", err)
	}
	return Normalize(&raw)
}

// Normalize converts a raw product into the uniform Option/Variant shape.
//
// Option order is never changed. Value lists are deduplicated in first-seen order;
// values missing from the schema are inferred by scanning variants in list order.
// Products without options or without variants come back with empty Options and
// a *model.StructuralError, so the caller can fall back to the first/only variant.
func Normalize(raw *RawProduct) (*model.Product, error) {
	p := &model.Product{
		ID:          string(raw.ID),
		Handle:      raw.Handle,
		Title:       raw.Title,
		Description: raw.Description,
		Price:       int64(raw.Price),
		Media:       collectMedia(raw),
		Options:     []model.Option{},
		Variants:    make([]model.Variant, 0, len(raw.Variants)),
	}

	for _, rv := range raw.Variants {
		p.Variants = append(p.Variants, model.Variant{
			ID:        string(rv.ID),
			Title:     rv.Title,
			Options:   rv.optionValues(),
			Price:     int64(rv.Price),
			Available: rv.Available,
		})
	}

	// Base price falls back to the first variant when the document omits it.
	if p.Price == 0 && len(p.Variants) > 0 {
		p.Price = p.Variants[0].Price
	}

	if len(p.Variants) == 0 {
		return p, &model.StructuralError{ProductID: p.ID, Reason: "product has no variants"}
	}

	specs, err := optionSpecs(raw)
	if err != nil {
		return p, &model.StructuralError{ProductID: p.ID, Reason: err.Error()}
	}
	if len(specs) == 0 {
		return p, &model.StructuralError{ProductID: p.ID, Reason: "product has no options"}
	}

	p.Options = make([]model.Option, len(specs))
	for i, spec := range specs {
		values := spec.Values
		if len(values) == 0 {
			values = inferValues(p.Variants, i)
		}
		p.Options[i] = model.Option{Name: spec.Name, Values: dedupe(values)}
	}

	return p, nil
}

// optionSpecs reads whichever option encoding the document uses.
// options_with_values wins when present.
func optionSpecs(raw *RawProduct) ([]RawOption, error) {
	if len(raw.OptionsWithValues) > 0 {
		return raw.OptionsWithValues, nil
	}
	if len(raw.Options) == 0 || string(raw.Options) == "null" {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal(raw.Options, &names); err == nil {
		specs := make([]RawOption, len(names))
		for i, n := range names {
			specs[i] = RawOption{Name: n}
		}
		return specs, nil
	}

	var objs []RawOption
	if err := json.Unmarshal(raw.Options, &objs); err != nil {
		return nil, fmt.Errorf("unrecognized options encoding")
	}
	return objs, nil
}

// inferValues collects option idx's values from variants in list order.
func inferValues(variants []model.Variant, idx int) []string {
	var out []string
	for _, v := range variants {
		if idx < len(v.Options) {
			out = append(out, v.Options[idx])
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func collectMedia(raw *RawProduct) []string {
	var media []string
	for _, img := range raw.Images {
		if img != "" {
			media = append(media, string(img))
		}
	}
	if len(media) == 0 && raw.FeaturedImage != "" {
		media = append(media, string(raw.FeaturedImage))
	}
	return media
}
