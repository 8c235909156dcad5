// Package catalog turns the storefront's loosely shaped product JSON into the
// normalized model.Product used by the rest of the quick-view core.
//
// Two option encodings exist in the wild and both must produce the same result:
//
//	"options": ["Color", "Size"]                       values implied by the variants
//	"options": [{"name": "Color", "values": [...]}]    explicit values
//	"options_with_values": [{"name": ..., "values": ...}]
//
// Everything downstream of Normalize sees only model.Option / model.Variant.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"quickview-proxy/internal/model"
)

// RawProduct is the union of the product document shapes served by
// /products/{handle}.js, the .json endpoint and pre-rendered page blobs.
type RawProduct struct {
	ID                FlexID          `json:"id"`
	Handle            string          `json:"handle"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             FlexPrice       `json:"price"`
	Options           json.RawMessage `json:"options"`
	OptionsWithValues []RawOption     `json:"options_with_values"`
	Variants          []RawVariant    `json:"variants"`
	Images            []FlexImage     `json:"images"`
	FeaturedImage     FlexImage       `json:"featured_image"`
}

// RawOption is an option with explicitly listed values.
type RawOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// RawVariant carries option values either as an ordered array or as option1..3.
type RawVariant struct {
	ID        FlexID    `json:"id"`
	Title     string    `json:"title"`
	Options   []string  `json:"options"`
	Option1   *string   `json:"option1"`
	Option2   *string   `json:"option2"`
	Option3   *string   `json:"option3"`
	Price     FlexPrice `json:"price"`
	Available bool      `json:"available"`
}

// optionValues returns the variant's ordered option tuple.
func (v RawVariant) optionValues() []string {
	if len(v.Options) > 0 {
		return v.Options
	}
	out := []string{}
	for _, o := range []*string{v.Option1, v.Option2, v.Option3} {
		if o == nil {
			break
		}
		out = append(out, *o)
	}
	return out
}

// FlexID accepts numeric or string identifiers.
// Shopify ids exceed float precision, so numbers are kept as their literal text.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// FlexPrice accepts integer minor units (2500) or decimal major-unit strings ("25.00").
type FlexPrice int64

func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = FlexPrice(model.ParseCents(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = FlexPrice(int64(f))
	return nil
}

// FlexImage accepts a bare URL or an object with a src field.
type FlexImage string

func (img *FlexImage) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*img = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*img = FlexImage(s)
		return nil
	}
	var obj struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	*img = FlexImage(obj.Src)
	return nil
}
