// carttool is a CLI for exercising the posd cart API from a shell.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	carttool open -posd URL
//	carttool get -posd URL -cart <cart-id>
//	carttool scan -posd URL -cart <cart-id> -barcode CODE [-qty N]
//	carttool qty -posd URL -cart <cart-id> -line <line-id> -qty N
//	carttool price -posd URL -cart <cart-id> -line <line-id> -price P
//	carttool rm -posd URL -cart <cart-id> -line <line-id>
//	carttool refresh -posd URL -cart <cart-id>
//	carttool close -posd URL -cart <cart-id>
//
// Examples:
//
//	CART=$(carttool open -posd http://localhost:8080 -q)
//	carttool scan -posd http://localhost:8080 -cart $CART -barcode 4001
//	carttool qty -posd http://localhost:8080 -cart $CART -line l1 -qty 2.5
//	carttool close -posd http://localhost:8080 -cart $CART
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	posdURL string
	quiet   bool
	noColor bool
	verbose bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
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
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray, colorBold = "", "", "", ""
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
	case "scan":
		runScan(args)
	case "qty":
		runQty(args)
	case "price":
		runPrice(args)
	case "rm":
		runRemove(args)
	case "refresh":
		runRefresh(args)
	case "close":
		runClose(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `carttool - register cart test tool

Usage:
  carttool <command> [options]

Commands:
  open      Open a new cart session
  get       Show cart state with totals and queue depth
  scan      Add an item by barcode
  qty       Change the quantity of a line
  price     Override the unit price of a line
  rm        Remove a line
  refresh   Re-read the cart from the billing backend
  close     Close the cart session

Examples:
  # Open a cart and capture its ID
  CART=$(carttool open -posd http://localhost:8080 -q)

  # Scan two items, one weighed
  carttool scan -posd http://localhost:8080 -cart "$CART" -barcode 4001
  carttool scan -posd http://localhost:8080 -cart "$CART" -barcode 2001 -qty 0.45

  # Adjust and remove
  carttool qty -posd http://localhost:8080 -cart "$CART" -line l1 -qty 3
  carttool rm -posd http://localhost:8080 -cart "$CART" -line l1

Run 'carttool <command> -h' for command-specific options.
`)
}

// commonFlags registers flags shared by all commands.
func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&posdURL, "posd", "http://localhost:8080", "posd base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
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
	parseFlags(fs, args)

	resp, _, err := doRequest("POST", "/carts", nil)
	if err != nil {
		fatal("Failed to open cart: %v", err)
	}

	cartID := cartIDOf(resp)
	if quiet {
		fmt.Println(cartID)
	} else {
		printSuccess("Cart opened")
		fmt.Printf("  ID: %s%s%s\n", colorCyan, cartID, colorReset)
	}
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	commonFlags(fs)
	var cartID string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")

	resp, _, err := doRequest("GET", "/carts/"+url.PathEscape(cartID), nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}

	printCartSummary(resp)
}

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	commonFlags(fs)
	var cartID, barcode, qty string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	fs.StringVar(&barcode, "barcode", "", "Product barcode (required)")
	fs.StringVar(&qty, "qty", "", "Quantity (decimal, default 1)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")
	requireFlag(fs, barcode, "barcode")

	body := map[string]interface{}{"barcode": barcode}
	if qty != "" {
		body["quantity"] = qty
	}

	resp, status, err := doRequest("POST", "/carts/"+url.PathEscape(cartID)+"/scan", body)
	if err != nil {
		fatal("Failed to scan: %v", err)
	}

	printLineResult(resp, status)
}

func runQty(args []string) {
	fs := flag.NewFlagSet("qty", flag.ExitOnError)
	commonFlags(fs)
	var cartID, lineID, qty string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	fs.StringVar(&lineID, "line", "", "Line ID (required)")
	fs.StringVar(&qty, "qty", "", "New quantity (decimal, required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")
	requireFlag(fs, lineID, "line")
	requireFlag(fs, qty, "qty")

	resp, status, err := doRequest("PUT",
		"/carts/"+url.PathEscape(cartID)+"/lines/"+url.PathEscape(lineID),
		map[string]interface{}{"quantity": qty})
	if err != nil {
		fatal("Failed to set quantity: %v", err)
	}

	printLineResult(resp, status)
}

func runPrice(args []string) {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	commonFlags(fs)
	var cartID, lineID, price string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	fs.StringVar(&lineID, "line", "", "Line ID (required)")
	fs.StringVar(&price, "price", "", "New unit price (decimal, required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")
	requireFlag(fs, lineID, "line")
	requireFlag(fs, price, "price")

	resp, status, err := doRequest("PUT",
		"/carts/"+url.PathEscape(cartID)+"/lines/"+url.PathEscape(lineID),
		map[string]interface{}{"unit_price": price})
	if err != nil {
		fatal("Failed to set price: %v", err)
	}

	printLineResult(resp, status)
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	commonFlags(fs)
	var cartID, lineID string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	fs.StringVar(&lineID, "line", "", "Line ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")
	requireFlag(fs, lineID, "line")

	_, status, err := doRequest("DELETE",
		"/carts/"+url.PathEscape(cartID)+"/lines/"+url.PathEscape(lineID), nil)
	if err != nil {
		fatal("Failed to remove line: %v", err)
	}

	if status == http.StatusAccepted {
		printWarning("Offline - removal queued for replay")
	} else {
		printSuccess("Line removed")
	}
}

func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	commonFlags(fs)
	var cartID string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")

	resp, _, err := doRequest("POST", "/carts/"+url.PathEscape(cartID)+"/refresh", nil)
	if err != nil {
		fatal("Failed to refresh: %v", err)
	}

	printCartSummary(resp)
}

func runClose(args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	commonFlags(fs)
	var cartID string
	fs.StringVar(&cartID, "cart", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, cartID, "cart")

	_, _, err := doRequest("DELETE", "/carts/"+url.PathEscape(cartID), nil)
	if err != nil {
		fatal("Failed to close cart: %v", err)
	}
	printSuccess("Cart closed")
}

func requireFlag(fs *flag.FlagSet, val, name string) {
	if val == "" {
		fmt.Fprintf(os.Stderr, "missing required -%s flag\n\n", name)
		fs.Usage()
		os.Exit(1)
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}) (map[string]interface{}, int, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, posdURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return nil, resp.StatusCode, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parsing response: %w", err)
	}
	return result, resp.StatusCode, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func cartIDOf(resp map[string]interface{}) string {
	cart, ok := resp["cart"].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := cart["id"].(string)
	return id
}

func printCartSummary(resp map[string]interface{}) {
	if quiet {
		totals, _ := resp["totals"].(map[string]interface{})
		if totals != nil {
			fmt.Println(totals["subtotal"])
		}
		return
	}

	cart, _ := resp["cart"].(map[string]interface{})
	totals, _ := resp["totals"].(map[string]interface{})
	if cart == nil {
		printWarning("No cart in response")
		return
	}

	fmt.Printf("%sCart %v%s\n", colorBold, cart["id"], colorReset)
	lines, _ := cart["lines"].([]interface{})
	for _, l := range lines {
		line, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		pending := ""
		if p, _ := line["pending"].(bool); p {
			pending = colorYellow + " (queued)" + colorReset
		}
		fmt.Printf("  %s%v%s  %v × %v = %v%s\n",
			colorCyan, line["id"], colorReset,
			line["quantity"], line["unit_price"], line["amount"], pending)
	}
	if totals != nil {
		fmt.Printf("  %sitems %v, subtotal %v%s\n",
			colorGray, totals["item_count"], totals["subtotal"], colorReset)
	}
	if depth, ok := resp["queue_depth"].(float64); ok && depth > 0 {
		printWarning("%d mutation(s) queued offline", int(depth))
	}
	if online, ok := resp["online"].(bool); ok && !online {
		printWarning("Register is OFFLINE")
	}
}

func printLineResult(resp map[string]interface{}, status int) {
	queued, _ := resp["queued"].(bool)
	line, _ := resp["line"].(map[string]interface{})

	if quiet {
		if line != nil {
			fmt.Println(line["id"])
		}
		return
	}

	if queued || status == http.StatusAccepted {
		printWarning("Offline - change queued for replay")
	} else {
		printSuccess("Confirmed")
	}
	if line != nil {
		fmt.Printf("  %s%v%s  %v × %v = %v\n",
			colorCyan, line["id"], colorReset,
			line["quantity"], line["unit_price"], line["amount"])
		if d, ok := line["discount_pct"].(string); ok && d != "" && d != "0" {
			fmt.Printf("  %sdiscount %v%%%s\n", colorGray, d, colorReset)
		}
	}
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

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
