package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/franktheglock/openllm/model"
)

// Search backends.
const (
	SearchDuckDuckGo = "duckduckgo"
	SearchSearXNG    = "searxng"
	SearchBrave      = "brave"
	SearchGoogle     = "google"
)

var defaultSearchEndpoints = map[string]string{
	SearchDuckDuckGo: "https://html.duckduckgo.com/html/",
	SearchSearXNG:    "http://localhost:8080",
	SearchBrave:      "https://api.search.brave.com/res/v1/web/search",
	SearchGoogle:     "https://www.googleapis.com/customsearch/v1",
}

// WebSearchConfig configures the web_search tool.
type WebSearchConfig struct {
	Provider string
	// BaseURL overrides the backend endpoint. For SearXNG it is the instance root.
	BaseURL           string
	BraveAPIKey       string
	GoogleAPIKey      string
	GoogleCSEID       string
	RequestsPerSecond float64
	UserAgent         string
	HTTPClient        *http.Client
}

// SearchResult is one hit from any backend.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearch queries one of several search backends.
type WebSearch struct {
	cfg     WebSearchConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebSearch creates the tool. Unknown providers fail at execution time with
// a descriptive result so the model can report it.
func NewWebSearch(cfg WebSearchConfig) *WebSearch {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = SearchDuckDuckGo
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSearchEndpoints[cfg.Provider]
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; openllm/1.0)"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	slog.Info("web search tool initialized", "component", "tools", "provider", cfg.Provider)

	return &WebSearch{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

func (w *WebSearch) Definition() model.ToolDefinition {
	return mcptypes.Tool{
		Name:        "web_search",
		Description: "**ALWAYS use this tool for ANY factual questions, current events, dates, statistics, or information you're unsure about.** This tool searches the web in real-time for accurate, up-to-date information. If asked about anything factual or current, use this FIRST before making claims. Search for: news, facts, dates, people, places, events, products, statistics, or any information that might change.",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query - be specific and detailed for better results",
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "Number of results to return (1-10, default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}
}

func (w *WebSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query", ""))
	if query == "" {
		return "Error: Missing required argument 'query'", nil
	}
	n := min(max(intArg(args, "num_results", 5), 1), 10)

	slog.Info("executing web search", "component", "tools", "provider", w.cfg.Provider, "query", query)

	results, err := w.Search(ctx, query, n)
	if err != nil {
		slog.Error("web search failed", "component", "tools", "provider", w.cfg.Provider, "error", err)
		return "Error performing search: " + err.Error(), nil
	}
	return FormatSearchResults(results), nil
}

// Search runs query against the configured backend.
func (w *WebSearch) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var results []SearchResult
	var err error
	switch w.cfg.Provider {
	case SearchDuckDuckGo:
		results, err = w.searchDuckDuckGo(ctx, query)
	case SearchSearXNG:
		results, err = w.searchSearXNG(ctx, query)
	case SearchBrave:
		results, err = w.searchBrave(ctx, query, n)
	case SearchGoogle:
		results, err = w.searchGoogle(ctx, query, n)
	default:
		return nil, fmt.Errorf("unknown search provider '%s'", w.cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// FormatSearchResults renders results as a numbered list.
func FormatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	b.WriteString("Search Results:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		fmt.Fprintf(&b, "   %s\n\n", r.Snippet)
	}
	return strings.TrimSpace(b.String())
}

func (w *WebSearch) get(ctx context.Context, endpoint string, params url.Values, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search backend returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func (w *WebSearch) searchDuckDuckGo(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := w.get(ctx, w.cfg.BaseURL, url.Values{"q": {query}}, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}
		href, _ := link.Attr("href")
		results = append(results, SearchResult{
			Title:   title,
			URL:     unwrapDuckDuckGoURL(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
	})
	return results, nil
}

// unwrapDuckDuckGoURL resolves the redirect links on the HTML results page.
func unwrapDuckDuckGoURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func (w *WebSearch) searchSearXNG(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := strings.TrimRight(w.cfg.BaseURL, "/") + "/search"
	body, err := w.get(ctx, endpoint, url.Values{
		"q":      {query},
		"format": {"json"},
		"pageno": {"1"},
	}, nil)
	if err != nil {
		return nil, err
	}
	return collectJSONResults(body, "results", "title", "url", "content"), nil
}

func (w *WebSearch) searchBrave(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if w.cfg.BraveAPIKey == "" {
		return nil, errors.New("Brave API key not configured")
	}
	body, err := w.get(ctx, w.cfg.BaseURL, url.Values{
		"q":     {query},
		"count": {strconv.Itoa(n)},
	}, map[string]string{
		"X-Subscription-Token": w.cfg.BraveAPIKey,
		"Accept":               "application/json",
	})
	if err != nil {
		return nil, err
	}
	return collectJSONResults(body, "web.results", "title", "url", "description"), nil
}

func (w *WebSearch) searchGoogle(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if w.cfg.GoogleAPIKey == "" || w.cfg.GoogleCSEID == "" {
		return nil, errors.New("Google API key or CSE ID not configured")
	}
	body, err := w.get(ctx, w.cfg.BaseURL, url.Values{
		"key": {w.cfg.GoogleAPIKey},
		"cx":  {w.cfg.GoogleCSEID},
		"q":   {query},
		"num": {strconv.Itoa(min(n, 10))},
	}, nil)
	if err != nil {
		return nil, err
	}
	return collectJSONResults(body, "items", "title", "link", "snippet"), nil
}

func collectJSONResults(body []byte, path, titleKey, urlKey, snippetKey string) []SearchResult {
	var results []SearchResult
	gjson.GetBytes(body, path).ForEach(func(_, item gjson.Result) bool {
		results = append(results, SearchResult{
			Title:   item.Get(titleKey).String(),
			URL:     item.Get(urlKey).String(),
			Snippet: item.Get(snippetKey).String(),
		})
		return true
	})
	return results
}
