package symbols

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTMLTableSource reads symbols from the first HTML table on a page whose header has a
// Symbol column, such as the Wikipedia list of S&P 500 companies.
type HTMLTableSource struct {
	url    string
	column string
	client *http.Client
}

// HTMLOption configures an HTMLTableSource.
type HTMLOption func(*HTMLTableSource)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) HTMLOption {
	return func(s *HTMLTableSource) { s.client = c }
}

// WithColumn sets the header text identifying the symbol column.
func WithColumn(column string) HTMLOption {
	return func(s *HTMLTableSource) { s.column = column }
}

// NewHTMLTableSource creates a source reading url.
func NewHTMLTableSource(url string, opts ...HTMLOption) *HTMLTableSource {
	s := &HTMLTableSource{
		url:    url,
		column: "Symbol",
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *HTMLTableSource) Name() string { return "url:" + s.url }

func (s *HTMLTableSource) Symbols(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req) //nolint:gosec // URL from configuration
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", s.url, res.StatusCode)
	}

	doc, err := html.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	for _, table := range findAll(doc, "table") {
		rows := tableRows(table)
		if len(rows) == 0 {
			continue
		}

		index := columnIndex(rows[0], s.column)
		if index < 0 {
			continue
		}

		symbols := make([]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if index < len(row) {
				symbols = append(symbols, row[index])
			}
		}

		return symbols, nil
	}

	return nil, fmt.Errorf("no table with a %q column found at %s", s.column, s.url)
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}

		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return out
}

// tableRows returns the cell texts of every row of table, ignoring nested tables.
func tableRows(table *html.Node) [][]string {
	var rows [][]string

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}

			switch c.Data {
			case "table":
				continue
			case "tr":
				rows = append(rows, rowCells(c))
			default:
				walk(c)
			}
		}
	}
	walk(table)

	return rows
}

func rowCells(tr *html.Node) []string {
	var cells []string

	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, strings.TrimSpace(text(c)))
		}
	}

	return cells
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}

	return sb.String()
}
