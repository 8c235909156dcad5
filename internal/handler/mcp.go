// MCP transport handler using the official MCP Go SDK.
// Exposes the quick-view lifecycle as MCP tools.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"quickview-proxy/internal/model"
	"quickview-proxy/internal/pagecfg"
	"quickview-proxy/internal/quickview"
)

// === MCP Tool Input/Output Types ===

// OpenQuickViewInput is the input schema for open_quick_view tool.
// Embedded documents stay raw so numeric ids keep every digit.
type OpenQuickViewInput struct {
	CartToken     string          `json:"cart_token" jsonschema:"shopper cart session token,required"`
	Handle        string          `json:"handle,omitempty" jsonschema:"product handle or id to fetch"`
	Product       json.RawMessage `json:"product,omitempty" jsonschema:"embedded product document; takes precedence over handle"`
	UpsellProduct json.RawMessage `json:"upsell_product,omitempty" jsonschema:"embedded upsell product document"`
	Page          string          `json:"page,omitempty" jsonschema:"page configuration in Quickview-Page header syntax"`
}

// SelectOptionInput is the input schema for select_option tool.
type SelectOptionInput struct {
	ID    string `json:"id" jsonschema:"quick view ID,required"`
	Name  string `json:"name" jsonschema:"option name,required"`
	Value string `json:"value" jsonschema:"option value,required"`
}

// SessionInput is the input schema for tools addressing one quick view.
type SessionInput struct {
	ID string `json:"id" jsonschema:"quick view ID,required"`
}

// SubmitOutput is the output of submit_quick_view.
type SubmitOutput struct {
	Cart            *model.CartState `json:"cart"`
	VariantID       string           `json:"variant_id"`
	UpsellAttempted bool             `json:"upsell_attempted"`
	UpsellAdded     bool             `json:"upsell_added"`
	Close           bool             `json:"close"`
}

// CloseOutput is the output of close_quick_view.
type CloseOutput struct {
	Closed bool `json:"closed"`
}

// NewMCPServer creates an MCP server with quick-view tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "quickview-proxy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Quick View - open a product, choose options and add the chosen variant to the cart. " +
				"A qualifying selection may also add a promotional item.",
		},
	)

	// Registered raw: the typed wrapper round-trips arguments through float64.
	server.AddTool(&mcp.Tool{
		Name:         "open_quick_view",
		Description:  "Open a quick view for a product. Provide a handle or an embedded product document.",
		InputSchema:  mustSchema[OpenQuickViewInput](),
		OutputSchema: mustSchema[quickview.View](),
	}, h.mcpOpen)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_quick_view",
		Description: "Get the current state of a quick view.",
	}, h.mcpGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_option",
		Description: "Change one option value and re-resolve the selected variant.",
	}, h.mcpSelect)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_quick_view",
		Description: "Add the selected variant to the cart and close the quick view.",
	}, h.mcpSubmit)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "close_quick_view",
		Description: "Close a quick view without adding anything.",
	}, h.mcpClose)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpOpen(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input OpenQuickViewInput
	if args := req.Params.Arguments; len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %v", err)), nil
		}
	}

	view, err := h.openQuickView(ctx, input)
	if err != nil {
		return toolError(err), nil
	}
	return toolResult(view)
}

func (h *Handler) openQuickView(ctx context.Context, input OpenQuickViewInput) (*quickview.View, error) {
	if input.CartToken == "" {
		return nil, fmt.Errorf("cart_token is required")
	}

	cfg, err := pagecfg.Resolve(input.Page, h.defaults)
	if err != nil {
		var verErr *pagecfg.VersionError
		if errors.As(err, &verErr) {
			return nil, fmt.Errorf("%s: %s", verErr.Code, verErr.Message)
		}
		return nil, fmt.Errorf("%s: %v", pagecfg.PageConfigInvalid, err)
	}

	view, err := h.svc.Open(ctx, quickview.OpenRequest{
		Shopper:       input.CartToken,
		Handle:        input.Handle,
		Product:       rawDocument(input.Product),
		UpsellProduct: rawDocument(input.UpsellProduct),
		Rule:          cfg.Rule,
	})
	if err != nil {
		return nil, h.mcpError(err)
	}
	return view, nil
}

func (h *Handler) mcpGet(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *quickview.View, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	view, err := h.svc.View(input.ID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, view, nil
}

func (h *Handler) mcpSelect(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SelectOptionInput,
) (*mcp.CallToolResult, *quickview.View, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	if input.Name == "" {
		return nil, nil, fmt.Errorf("name is required")
	}

	view, err := h.svc.Select(input.ID, input.Name, input.Value)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, view, nil
}

func (h *Handler) mcpSubmit(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *SubmitOutput, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	res, err := h.svc.Submit(ctx, input.ID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &SubmitOutput{
		Cart:            res.Cart,
		VariantID:       res.VariantID,
		UpsellAttempted: res.UpsellAttempted,
		UpsellAdded:     res.UpsellAdded,
		Close:           res.Close,
	}, nil
}

func (h *Handler) mcpClose(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CloseOutput, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	if err := h.svc.Close(input.ID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &CloseOutput{Closed: true}, nil
}

// rawDocument treats an explicit JSON null as an absent document.
func rawDocument(doc json.RawMessage) json.RawMessage {
	if bytes.Equal(bytes.TrimSpace(doc), []byte("null")) {
		return nil
	}
	return doc
}

// mustSchema infers a tool schema, describing raw documents as objects.
func mustSchema[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[json.RawMessage](): {Type: "object"},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("mcp schema for %T: %v", *new(T), err))
	}
	return s
}

// toolResult mirrors the typed tool wrapper: structured content plus a text copy.
func toolResult(out any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling output: %w", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: json.RawMessage(data),
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	if errors.As(err, &apiErr) {
		h.logger.Error("mcp upstream error", "code", apiErr.Code, "error", err.Error())
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
