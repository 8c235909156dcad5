// Package selection holds the per-quick-view option selection and the variant it
// resolves to.
//
// State machine:
//
//	uninitialized ──Init──> initialized(resolved) ──Change──> initialized(resolved)
//	      ^                                                         │
//	      └────────────────────────── Reset ────────────────────────┘
//
// Once initialized the selection always holds exactly one value per option and the
// resolved variant is recomputed from the complete selection on every change.
package selection

import (
	"errors"
	"fmt"

	"quickview-proxy/internal/model"
	"quickview-proxy/internal/variant"
)

var (
	ErrNotInitialized = errors.New("selection not initialized")
	ErrUnknownOption  = errors.New("unknown option")
)

// State is not safe for concurrent use; the owning session serializes access.
type State struct {
	product  *model.Product
	sel      model.Selection
	resolved *model.Variant
}

// New returns an uninitialized state.
func New() *State {
	return &State{}
}

// Init binds the state to a product and selects its initial variant.
// Products without options run in implicit mode: no controls, the first
// available (or first) variant is the only thing that can be submitted.
func (s *State) Init(p *model.Product) error {
	if p == nil {
		return fmt.Errorf("init selection: nil product")
	}

	s.product = p
	s.sel = make(model.Selection, len(p.Options))
	s.resolved = nil

	initial, ok := variant.Initial(p.Variants)
	if !ok {
		return nil
	}

	if !p.Configurable() {
		s.resolved = initial
		return nil
	}

	s.sel = variant.SelectionFor(p.Options, initial)
	s.resolve()
	return nil
}

// Change applies one option change event and re-resolves.
// Values of the other options are left as they were.
func (s *State) Change(option, value string) error {
	if s.product == nil {
		return ErrNotInitialized
	}
	if !s.hasOption(option) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	s.sel[option] = value
	s.resolve()
	return nil
}

// Reset tears the state down to uninitialized.
func (s *State) Reset() {
	s.product = nil
	s.sel = nil
	s.resolved = nil
}

// Initialized reports whether Init has run since the last Reset.
func (s *State) Initialized() bool {
	return s.product != nil
}

// Product returns the bound product, nil when uninitialized.
func (s *State) Product() *model.Product {
	return s.product
}

// Selection returns a copy of the current selection.
func (s *State) Selection() model.Selection {
	return s.sel.Clone()
}

// Resolved returns the variant matching the current selection, or nil for "none".
func (s *State) Resolved() *model.Variant {
	return s.resolved
}

// DisplayPrice is the resolved variant's price, or the product base price as a
// placeholder when nothing resolves.
func (s *State) DisplayPrice() int64 {
	if s.resolved != nil {
		return s.resolved.Price
	}
	if s.product != nil {
		return s.product.Price
	}
	return 0
}

// CanSubmit reports whether there is a variant to add.
func (s *State) CanSubmit() bool {
	return s.resolved != nil && s.resolved.ID != ""
}

func (s *State) resolve() {
	s.resolved, _ = variant.Match(s.product.Options, s.product.Variants, s.sel)
}

func (s *State) hasOption(name string) bool {
	for _, opt := range s.product.Options {
		if opt.Name == name {
			return true
		}
	}
	return false
}
