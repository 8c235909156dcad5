package pagecfg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"

	"quickview-proxy/internal/model"
)

// ParsePageHeader decodes a Quickview-Page header (RFC 8941 Dictionary).
//
// Examples:
//   - color="black", size="medium", upsell="gift-wrap"
//   - color=black, size=medium, upsell="gift-wrap", v="1.0.0"
//   - color="black", size="medium", size-aliases=("m" "med"), upsell="gift-wrap"
//
// Members may be strings or tokens. Unknown members and parameters are ignored.
// Missing members are left empty; the returned rule is not validated for completeness.
func ParsePageHeader(header string) (*PageConfig, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty Quickview-Page header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid Quickview-Page header: %w", err)
	}

	rule := &model.TriggerRule{}
	cfg := &PageConfig{Rule: rule, FromHeader: true}

	if rule.Color, err = stringMember(dict, "color"); err != nil {
		return nil, err
	}
	if rule.Size, err = stringMember(dict, "size"); err != nil {
		return nil, err
	}
	if rule.Upsell.Handle, err = stringMember(dict, "upsell"); err != nil {
		return nil, err
	}
	if cfg.Version, err = stringMember(dict, "v"); err != nil {
		return nil, err
	}

	if member, ok := dict.Get("size-aliases"); ok {
		list, ok := member.(httpsfv.InnerList)
		if !ok {
			return nil, errors.New("size-aliases must be an inner list")
		}
		for _, item := range list.Items {
			s, err := itemString(item)
			if err != nil {
				return nil, fmt.Errorf("size-aliases: %w", err)
			}
			rule.SizeAliases = append(rule.SizeAliases, s)
		}
	}

	return cfg, nil
}

// stringMember returns the named member as a string, or "" when absent.
func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", nil
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, err := itemString(item)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func itemString(item httpsfv.Item) (string, error) {
	switch v := item.Value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case httpsfv.Token:
		return string(v), nil
	default:
		return "", errors.New("value must be a string or token")
	}
}
