// Package pagecfg resolves the per-page quick-view configuration: the trigger color,
// trigger size and upsell product a storefront page wires into its widget.
// REST middleware reads it from the Quickview-Page header.
// MCP handlers pass the same header value explicitly in tool arguments.
package pagecfg

import "quickview-proxy/internal/model"

// PageConfig is the resolved configuration for one request.
type PageConfig struct {
	// Rule may be partially populated; an incomplete rule disables the upsell.
	Rule *model.TriggerRule

	// Version is the widget protocol version the page speaks ("" when unstated).
	Version string

	// FromHeader is false when the service-level default applied.
	FromHeader bool
}

// contextKey is the type for context values to avoid collisions
type contextKey string

// PageConfigKey is the context key for storing PageConfig
const PageConfigKey contextKey = "quickview.page"

// PageHeader carries the per-page configuration dictionary.
const PageHeader = "Quickview-Page"

// SupportedVersion is the newest widget protocol version this service understands.
const SupportedVersion = "1.0.0"

// PageConfigInvalid is the error code for a malformed Quickview-Page header
const PageConfigInvalid = "page_config_invalid"

// VersionUnsupported is the error code when the widget version is too new
const VersionUnsupported = "quickview_version_unsupported"
