// Package mockserver provides a mock market data server for end-to-end tests.
// It serves the Yahoo chart API (with its cookie and crumb handshake), Binance daily klines
// and an HTML page holding a symbol table.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/rxtech-lab/argo-history/internal/types"
)

const (
	// Crumb is the token handed out by the crumb endpoint and required by the chart endpoint.
	Crumb = "mock-crumb"
	// GMTOffset is the exchange offset reported in chart metadata (US Eastern, standard time).
	GMTOffset = -18000

	sessionCookie = "A3"
	marketOpen    = 14*time.Hour + 30*time.Minute
	klineLimit    = 1000
)

// MarketServer is an in-memory market data server.
type MarketServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	rows     map[string][]types.PriceRow
	failures map[string]int
	requests map[string]int
	symbols  []string
}

// NewMarketServer creates a server with no data. Unknown symbols answer 404.
func NewMarketServer() *MarketServer {
	return &MarketServer{
		mu:         sync.RWMutex{},
		httpServer: nil,
		listener:   nil,
		rows:       make(map[string][]types.PriceRow),
		failures:   make(map[string]int),
		requests:   make(map[string]int),
		symbols:    nil,
	}
}

// SetRows sets the daily rows served for symbol, across all years.
func (s *MarketServer) SetRows(symbol string, rows []types.PriceRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[symbol] = rows
}

// FailSymbol makes every data request for symbol answer with status.
func (s *MarketServer) FailSymbol(symbol string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[symbol] = status
}

// SetSymbolTable sets the symbols listed on the symbols page.
func (s *MarketServer) SetSymbolTable(symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.symbols = append([]string(nil), symbols...)
}

// Requests returns how many data requests were made for symbol.
func (s *MarketServer) Requests(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[symbol]
}

// Start starts the server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MarketServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()

	// Yahoo
	router.HandleFunc("/cookie", s.handleCookie).Methods("GET")
	router.HandleFunc("/v1/test/getcrumb", s.handleCrumb).Methods("GET")
	router.HandleFunc("/v8/finance/chart/{symbol}", s.handleChart).Methods("GET")

	// Binance
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods("GET")

	router.HandleFunc("/symbols", s.handleSymbols).Methods("GET")

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the server.
func (s *MarketServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server is listening on.
func (s *MarketServer) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server. It doubles as the Binance base URL.
func (s *MarketServer) BaseURL() string {
	return "http://" + s.Address()
}

func (s *MarketServer) YahooChartURL() string  { return s.BaseURL() + "/v8/finance/chart" }
func (s *MarketServer) YahooCookieURL() string { return s.BaseURL() + "/cookie" }
func (s *MarketServer) YahooCrumbURL() string  { return s.BaseURL() + "/v1/test/getcrumb" }
func (s *MarketServer) SymbolsURL() string     { return s.BaseURL() + "/symbols" }

// lookup records a request for symbol and returns its rows within [from, to),
// or the failure status configured for it.
func (s *MarketServer) lookup(symbol string, from, to time.Time) ([]types.PriceRow, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[symbol]++

	if status, ok := s.failures[symbol]; ok {
		return nil, status
	}

	all, ok := s.rows[symbol]
	if !ok {
		return nil, http.StatusNotFound
	}

	var rows []types.PriceRow

	for _, row := range all {
		if !row.Date.Before(from) && row.Date.Before(to) {
			rows = append(rows, row)
		}
	}

	return rows, http.StatusOK
}

// handleCookie handles GET /cookie
func (s *MarketServer) handleCookie(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "mock-session", Path: "/"})
	w.WriteHeader(http.StatusOK)
}

// handleCrumb handles GET /v1/test/getcrumb
func (s *MarketServer) handleCrumb(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(sessionCookie); err != nil {
		http.Error(w, "missing session cookie", http.StatusUnauthorized)

		return
	}

	_, _ = w.Write([]byte(Crumb))
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartQuote struct {
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

type chartAdjClose struct {
	AdjClose []float64 `json:"adjclose"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote    []chartQuote    `json:"quote"`
		AdjClose []chartAdjClose `json:"adjclose"`
	} `json:"indicators"`
}

type chartBody struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

// handleChart handles GET /v8/finance/chart/{symbol}
func (s *MarketServer) handleChart(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	query := r.URL.Query()

	if query.Get("crumb") != Crumb {
		http.Error(w, `{"finance":{"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`, http.StatusUnauthorized)

		return
	}

	if query.Get("interval") != "1d" {
		http.Error(w, "only daily interval is supported", http.StatusBadRequest)

		return
	}

	period1, err1 := strconv.ParseInt(query.Get("period1"), 10, 64)
	period2, err2 := strconv.ParseInt(query.Get("period2"), 10, 64)

	if err1 != nil || err2 != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)

		return
	}

	rows, status := s.lookup(symbol, time.Unix(period1, 0).UTC(), time.Unix(period2, 0).UTC())

	var body chartBody

	if status != http.StatusOK {
		body.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}
		writeJSON(w, status, body)

		return
	}

	result := chartResult{}
	result.Meta.Symbol = symbol
	result.Meta.GMTOffset = GMTOffset

	quote := chartQuote{}
	adj := chartAdjClose{}

	for _, row := range rows {
		result.Timestamp = append(result.Timestamp, row.Date.Add(marketOpen).Unix())
		quote.Open = append(quote.Open, row.Open.InexactFloat64())
		quote.High = append(quote.High, row.High.InexactFloat64())
		quote.Low = append(quote.Low, row.Low.InexactFloat64())
		quote.Close = append(quote.Close, row.Close.InexactFloat64())
		quote.Volume = append(quote.Volume, row.Volume.InexactFloat64())
		adj.AdjClose = append(adj.AdjClose, row.AdjClose.InexactFloat64())
	}

	result.Indicators.Quote = []chartQuote{quote}
	result.Indicators.AdjClose = []chartAdjClose{adj}
	body.Chart.Result = []chartResult{result}

	writeJSON(w, http.StatusOK, body)
}

// handleKlines handles GET /api/v3/klines
func (s *MarketServer) handleKlines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	symbol := query.Get("symbol")

	if symbol == "" || query.Get("interval") != "1d" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": -1100, "msg": "Missing or unsupported parameters."})

		return
	}

	startMs, _ := strconv.ParseInt(query.Get("startTime"), 10, 64)

	endMs, err := strconv.ParseInt(query.Get("endTime"), 10, 64)
	if err != nil {
		endMs = time.Now().UnixMilli()
	}

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 || limit > klineLimit {
		limit = 500
	}

	rows, status := s.lookup(symbol, time.UnixMilli(startMs).UTC(), time.UnixMilli(endMs+1).UTC())
	if status != http.StatusOK {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": -1121, "msg": "Invalid symbol."})

		return
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}

	// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, takerBase, takerQuote, ignore]
	klines := make([][]any, 0, len(rows))
	for _, row := range rows {
		openTime := row.Date.UnixMilli()
		klines = append(klines, []any{
			openTime,
			row.Open.String(),
			row.High.String(),
			row.Low.String(),
			row.Close.String(),
			row.Volume.String(),
			openTime + (24 * time.Hour).Milliseconds() - 1,
			"0",
			0,
			"0",
			"0",
			"0",
		})
	}

	writeJSON(w, http.StatusOK, klines)
}

var symbolsPage = template.Must(template.New("symbols").Parse(`<!DOCTYPE html>
<html>
<body>
<table class="wikitable sortable" id="constituents">
<tr><th>Symbol</th><th>Security</th></tr>
{{range .}}<tr><td><a href="#">{{.}}</a></td><td>{{.}} Inc.</td></tr>
{{end}}</table>
</body>
</html>`))

// handleSymbols handles GET /symbols
func (s *MarketServer) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	symbols := append([]string(nil), s.symbols...)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := symbolsPage.Execute(w, symbols); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
