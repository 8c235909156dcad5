package woocommerce

import (
	"reflect"
	"testing"
)

func hoodie() *WooProduct {
	return &WooProduct{
		ID:     34,
		Name:   "Hoodie",
		Slug:   "hoodie",
		Type:   "variable",
		Prices: WooPrices{Price: "4500", CurrencyCode: "USD"},
		Images: []WooImage{{Src: "https://shop.example/hoodie.jpg"}},
		Attributes: []WooAttribute{
			{Name: "Color", Taxonomy: "pa_color", HasVariations: true, Terms: []WooTerm{
				{Name: "Black", Slug: "black"}, {Name: "Navy Blue", Slug: "navy-blue"},
			}},
			{Name: "Material", HasVariations: false, Terms: []WooTerm{{Name: "Cotton", Slug: "cotton"}}},
			{Name: "Size", Taxonomy: "pa_size", HasVariations: true, Terms: []WooTerm{
				{Name: "Medium", Slug: "medium"}, {Name: "Large", Slug: "large"},
			}},
		},
		Variations: []WooVariationRef{
			{ID: 35, Attributes: []WooVariationAttrib{{Name: "Color", Value: "black"}, {Name: "Size", Value: "medium"}}},
			{ID: 36, Attributes: []WooVariationAttrib{{Name: "pa_size", Value: "large"}, {Name: "pa_color", Value: "navy-blue"}}},
			{ID: 37, Attributes: []WooVariationAttrib{{Name: "Color", Value: "black"}, {Name: "Size", Value: ""}}},
		},
	}
}

func TestToRawProduct_Variable(t *testing.T) {
	variations := map[int]*WooProduct{
		35: {ID: 35, Name: "Hoodie - Black, Medium", Prices: WooPrices{Price: "4800"}, IsInStock: true, IsPurchable: true},
		36: {ID: 36, Prices: WooPrices{Price: "4500"}, IsInStock: false, IsPurchable: true},
	}

	raw := ToRawProduct(hoodie(), variations)

	if raw.ID != "34" || raw.Handle != "hoodie" || raw.Price != 4500 {
		t.Errorf("raw = %+v", raw)
	}
	if len(raw.OptionsWithValues) != 2 {
		t.Fatalf("options = %+v, want Color and Size only", raw.OptionsWithValues)
	}
	if raw.OptionsWithValues[1].Name != "Size" {
		t.Errorf("second option = %q, want Size", raw.OptionsWithValues[1].Name)
	}

	wantOpts := [][]string{
		{"Black", "Medium"},
		{"Navy Blue", "Large"},
		{"Black", ""},
	}
	for i, want := range wantOpts {
		if got := raw.Variants[i].Options; !reflect.DeepEqual(got, want) {
			t.Errorf("variant %d options = %v, want %v", i, got, want)
		}
	}

	if raw.Variants[0].Price != 4800 || !raw.Variants[0].Available {
		t.Errorf("variant 35 = %+v", raw.Variants[0])
	}
	if raw.Variants[1].Available {
		t.Error("out of stock variation should be unavailable")
	}
	// No variation document: base price, unavailable.
	if raw.Variants[2].Price != 4500 || raw.Variants[2].Available {
		t.Errorf("variant 37 = %+v", raw.Variants[2])
	}
}

func TestToRawProduct_Simple(t *testing.T) {
	p := &WooProduct{ID: 10, Name: "Gift Wrap", Slug: "gift-wrap", Type: "simple",
		Prices: WooPrices{Price: "300"}, IsInStock: true}

	raw := ToRawProduct(p, nil)

	if len(raw.Variants) != 1 || raw.Variants[0].ID != "10" || !raw.Variants[0].Available {
		t.Errorf("variants = %+v, want the product itself", raw.Variants)
	}
	if len(raw.OptionsWithValues) != 0 {
		t.Errorf("options = %+v, want none", raw.OptionsWithValues)
	}
}

func TestToCartState(t *testing.T) {
	cart := &WooCartResponse{
		Items: []WooCartItem{
			{ID: 35, Name: "Hoodie", Quantity: 1, Prices: WooCartItemPrices{Price: "4800"}},
			{ID: 10, Name: "Gift Wrap", Quantity: 2, Prices: WooCartItemPrices{Price: "300"}},
		},
		Totals: WooTotals{CurrencyCode: "USD", TotalPrice: "5400"},
	}

	state := ToCartState(cart, "tok")

	if state.Token != "tok" || state.ItemCount != 3 || state.TotalPrice != 5400 || state.Currency != "USD" {
		t.Errorf("state = %+v", state)
	}
	if state.Items[0].VariantID != "35" || state.Items[1].Price != 300 {
		t.Errorf("items = %+v", state.Items)
	}
}
