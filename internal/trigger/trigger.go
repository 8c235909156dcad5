// Package trigger decides whether the promotional auto-add fires for a resolved variant.
package trigger

import (
	"strings"

	"quickview-proxy/internal/model"
)

// Evaluate reports whether rule fires for resolved.
//
// Both the configured color and the configured size must appear, case-insensitively,
// somewhere among the variant's option values. Position does not matter. Size
// aliases, when configured, count as the size. A nil rule, a rule missing either
// value, or a nil variant never fires.
func Evaluate(resolved *model.Variant, rule *model.TriggerRule) bool {
	if resolved == nil || rule == nil || rule.Color == "" || rule.Size == "" {
		return false
	}

	values := make(map[string]struct{}, len(resolved.Options))
	for _, v := range resolved.Options {
		values[strings.ToLower(v)] = struct{}{}
	}

	if _, ok := values[strings.ToLower(rule.Color)]; !ok {
		return false
	}
	if _, ok := values[strings.ToLower(rule.Size)]; ok {
		return true
	}
	for _, alias := range rule.SizeAliases {
		if alias == "" {
			continue
		}
		if _, ok := values[strings.ToLower(alias)]; ok {
			return true
		}
	}
	return false
}
