// qvclient is a CLI tool for exercising quick-view flows against the service.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	qvclient open -proxy URL -cart TOKEN (-handle H | -product FILE) [-upsell-product FILE] [-page HEADER]
//	qvclient get -proxy URL -id <quick-view-id>
//	qvclient select -proxy URL -id <quick-view-id> -name OPTION -value VALUE
//	qvclient submit -proxy URL -cart TOKEN -id <quick-view-id>
//	qvclient close -proxy URL -id <quick-view-id>
//	qvclient events -proxy URL -cart TOKEN [-n COUNT]
//
// Examples:
//
//	ID=$(qvclient open -cart abc -handle classic-tee -page 'color="black", size="medium", upsell="gift-wrap"' -q)
//	qvclient select -id $ID -name Color -value Black
//	qvclient select -id $ID -name Size -value Medium
//	qvclient submit -cart abc -id $ID
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL  string
	cartToken string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "open":
		runOpen(args)
	case "get":
		runGet(args)
	case "select":
		runSelect(args)
	case "submit":
		runSubmit(args)
	case "close":
		runClose(args)
	case "events":
		runEvents(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `qvclient - quick-view flow test tool

Usage:
  qvclient <command> [options]

Commands:
  open      Open a quick view for a product
  get       Get current quick-view state
  select    Change one option value
  submit    Add the selected variant to the cart
  close     Close a quick view without adding
  events    Stream cart-changed events for a cart

Examples:
  # Open a quick view and capture its ID
  ID=$(qvclient open -cart abc -handle classic-tee -q)

  # Choose options
  qvclient select -id "$ID" -name Color -value Black
  qvclient select -id "$ID" -name Size -value Medium

  # Add to cart
  qvclient submit -cart abc -id "$ID"

  # Watch the mini cart refresh signal in another terminal
  qvclient events -cart abc

Run 'qvclient <command> -h' for command-specific options.
`)
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "Quick-view service base URL")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func runOpen(args []string) {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	commonFlags(fs)
	var handle, productFile, upsellFile, page string
	fs.StringVar(&cartToken, "cart", "", "Cart token (minted by the service if empty)")
	fs.StringVar(&handle, "handle", "", "Product handle or id to fetch")
	fs.StringVar(&productFile, "product", "", "Path to an embedded product JSON document")
	fs.StringVar(&upsellFile, "upsell-product", "", "Path to an embedded upsell product JSON document")
	fs.StringVar(&page, "page", "", "Quickview-Page header value")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output quick-view ID")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qvclient open (-handle H | -product FILE) [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	if handle == "" && productFile == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{}
	if handle != "" {
		reqBody["handle"] = handle
	}
	if productFile != "" {
		reqBody["product"] = readDocument(productFile)
	}
	if upsellFile != "" {
		reqBody["upsell_product"] = readDocument(upsellFile)
	}

	headers := map[string]string{}
	if page != "" {
		headers["Quickview-Page"] = page
	}

	resp, respHeader, err := doRequest("POST", "/quick-view", reqBody, headers)
	if err != nil {
		fatal("Failed to open quick view: %v", err)
	}

	id, _ := resp["id"].(string)
	if quiet {
		fmt.Println(id)
		return
	}
	printSuccess("Quick view opened")
	fmt.Printf("  ID: %s%s%s\n", colorCyan, id, colorReset)
	fmt.Printf("  Cart token: %s%s%s\n", colorCyan, respHeader.Get("Cart-Token"), colorReset)
	printView(resp)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	commonFlags(fs)
	var id string
	fs.StringVar(&id, "id", "", "Quick-view ID (required)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output resolved variant ID")
	parseFlags(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, _, err := doRequest("GET", "/quick-view/"+url.PathEscape(id), nil, nil)
	if err != nil {
		fatal("Failed to get quick view: %v", err)
	}

	if quiet {
		fmt.Println(resolvedID(resp))
		return
	}
	printSuccess("Quick view retrieved")
	printView(resp)
}

func runSelect(args []string) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	commonFlags(fs)
	var id, name, value string
	fs.StringVar(&id, "id", "", "Quick-view ID (required)")
	fs.StringVar(&name, "name", "", "Option name (required)")
	fs.StringVar(&value, "value", "", "Option value")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output resolved variant ID")
	parseFlags(fs, args)

	if id == "" || name == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, _, err := doRequest("PUT", "/quick-view/"+url.PathEscape(id)+"/options",
		map[string]string{"name": name, "value": value}, nil)
	if err != nil {
		fatal("Failed to select option: %v", err)
	}

	if quiet {
		fmt.Println(resolvedID(resp))
		return
	}
	printSuccess("%s = %s", name, value)
	printView(resp)
}

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	commonFlags(fs)
	var id string
	fs.StringVar(&cartToken, "cart", "", "Cart token (required)")
	fs.StringVar(&id, "id", "", "Quick-view ID (required)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output cart item count")
	parseFlags(fs, args)

	if id == "" || cartToken == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, _, err := doRequest("POST", "/quick-view/"+url.PathEscape(id)+"/submit", nil, nil)
	if err != nil {
		fatal("Failed to submit: %v", err)
	}

	cart, _ := resp["cart"].(map[string]interface{})
	if quiet {
		fmt.Println(cart["item_count"])
		return
	}

	variantID, _ := resp["variant_id"].(string)
	printSuccess("Added variant %s", variantID)
	if attempted, _ := resp["upsell_attempted"].(bool); attempted {
		if added, _ := resp["upsell_added"].(bool); added {
			printSuccess("Promotional item added")
		} else {
			printWarning("Promotional item could not be added")
		}
	}
	if cart != nil {
		fmt.Printf("  Items: %v\n", cart["item_count"])
		fmt.Printf("  Total: %s%s%s\n", colorGreen, formatCents(cart["total_price"]), colorReset)
	}
}

func runClose(args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	commonFlags(fs)
	var id string
	fs.StringVar(&id, "id", "", "Quick-view ID (required)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - no output")
	parseFlags(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	if _, _, err := doRequest("DELETE", "/quick-view/"+url.PathEscape(id), nil, nil); err != nil {
		fatal("Failed to close quick view: %v", err)
	}
	printSuccess("Quick view closed")
}

func runEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	commonFlags(fs)
	var count int
	fs.StringVar(&cartToken, "cart", "", "Cart token (required)")
	fs.IntVar(&count, "n", 0, "Exit after N events (0 = until interrupted)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - print event names only")
	parseFlags(fs, args)

	if cartToken == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reqURL := proxyURL + "/cart/events?cart_token=" + url.QueryEscape(cartToken)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		fatal("creating request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived; the shared client's timeout would cut it.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		fatal("Failed to subscribe: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fatal("HTTP %d: %s", resp.StatusCode, string(body))
	}
	printInfo("Listening for cart events on %s", cartToken)

	seen := 0
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "event: ") {
			continue
		}
		name := strings.TrimPrefix(line, "event: ")
		if quiet {
			fmt.Println(name)
		} else {
			fmt.Printf("%s%s%s %s%s%s\n", colorGray, time.Now().Format(time.TimeOnly), colorReset, colorCyan, name, colorReset)
		}
		seen++
		if count > 0 && seen >= count {
			return
		}
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}, headers map[string]string) (map[string]interface{}, http.Header, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, proxyURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cartToken != "" {
		req.Header.Set("Cart-Token", cartToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, resp.Header, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, resp.Header, fmt.Errorf("parsing response: %w", err)
		}
	}
	return result, resp.Header, nil
}

// errorMessage extracts the user-facing message from an error envelope.
func errorMessage(body []byte) string {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		return string(body)
	}
	return fmt.Sprintf("%s (%s)", env.Error.Message, env.Error.Code)
}

func readDocument(path string) json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("reading %s: %v", path, err)
	}
	if !json.Valid(data) {
		fatal("%s is not valid JSON", path)
	}
	return data
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printView(view map[string]interface{}) {
	if sel, ok := view["selection"].(map[string]interface{}); ok && len(sel) > 0 {
		parts := make([]string, 0, len(sel))
		for k, v := range sel {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Printf("  Selection: %s\n", strings.Join(parts, ", "))
	}

	if id := resolvedID(view); id != "" {
		fmt.Printf("  Variant: %s%s%s\n", colorCyan, id, colorReset)
	} else {
		printWarning("No variant matches the selection")
	}
	fmt.Printf("  Price: %s%s%s\n", colorGreen, formatCents(view["display_price"]), colorReset)

	if upsell, _ := view["upsell_enabled"].(bool); upsell {
		printInfo("Promotional add-on active for this page")
	}
}

func resolvedID(view map[string]interface{}) string {
	v, ok := view["resolved_variant"].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := v["id"].(string)
	return id
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	if len(body) > 0 {
		printJSON(body, "  ")
	}
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func formatCents(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", val/100)
	case int:
		return fmt.Sprintf("%.2f", float64(val)/100)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
