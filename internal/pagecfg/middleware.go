package pagecfg

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quickview-proxy/internal/model"
)

// Resolve builds the page configuration from a raw header value.
// An empty header yields the service default rule; a present header replaces it
// entirely, so a page can switch the upsell off by omitting a member.
func Resolve(header string, defaults *model.TriggerRule) (*PageConfig, error) {
	if header == "" {
		return &PageConfig{Rule: cloneRule(defaults)}, nil
	}

	cfg, err := ParsePageHeader(header)
	if err != nil {
		return nil, err
	}
	if err := CheckVersion(SupportedVersion, cfg.Version); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Middleware resolves the Quickview-Page header and stores the PageConfig in the
// request context for handlers. A malformed header is rejected with 400.
func Middleware(defaults *model.TriggerRule, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(PageHeader)
			cfg, err := Resolve(header, defaults)
			if err != nil {
				var verErr *VersionError
				if errors.As(err, &verErr) {
					writePageError(w, http.StatusBadRequest, verErr.Code, verErr.Message)
					return
				}

				logger.Warn("invalid Quickview-Page header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writePageError(w, http.StatusBadRequest, PageConfigInvalid, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), PageConfigKey, cfg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isExemptPath returns true for infrastructure paths.
func isExemptPath(path string) bool {
	return path == "/health" || path == "/healthz"
}

// writePageError writes the standard error envelope.
func writePageError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}

// FromContext retrieves the page configuration from request context.
// Returns nil if the middleware did not run.
func FromContext(ctx context.Context) *PageConfig {
	v, _ := ctx.Value(PageConfigKey).(*PageConfig)
	return v
}

func cloneRule(r *model.TriggerRule) *model.TriggerRule {
	if r == nil {
		return nil
	}
	out := *r
	out.SizeAliases = append([]string(nil), r.SizeAliases...)
	return &out
}
