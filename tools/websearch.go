package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

type webSearchInput struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Engine string `json:"engine"`
}

const webSearchDefaultLimit = 5
const webSearchMaxLimit = 10
const webSearchBodyCap = 256 * 1024

type webSearchResult struct {
	Title string
	URL   string
}

func (r *Registry) webSearch(payload string) string {
	header := resultHeader(WebSearch)
	in, err := parseInput[webSearchInput](json.RawMessage(payload))
	if err != nil {
		return header + "error: invalid payload: " + err.Error() + "\n"
	}
	if in.Query == "" {
		return header + "error: query is required\n"
	}
	if in.Limit <= 0 {
		in.Limit = webSearchDefaultLimit
	}
	if in.Limit > webSearchMaxLimit {
		in.Limit = webSearchMaxLimit
	}
	if in.Engine == "" {
		in.Engine = "duckduckgo"
	}

	var results []webSearchResult
	switch in.Engine {
	case "exa":
		results, err = r.searchExa(in.Query, in.Limit)
	case "duckduckgo":
		results, err = r.searchDuckDuckGo(in.Query, in.Limit)
	default:
		return header + "error: unknown engine " + in.Engine + "\n"
	}
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "results: %d\n", len(results))
	for _, res := range results {
		fmt.Fprintf(&sb, "%s\t%s\n", res.Title, res.URL)
	}
	return sb.String()
}

func (r *Registry) searchDuckDuckGo(query string, limit int) ([]webSearchResult, error) {
	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webSearchBodyCap))
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	sel := cascadia.MustCompile("a.result__a")
	var results []webSearchResult
	for _, node := range cascadia.QueryAll(doc, sel) {
		if len(results) >= limit {
			break
		}
		title := decodeEntities(textContent(node))
		href := decodeEntities(attr(node, "href"))
		results = append(results, webSearchResult{Title: title, URL: unwrapDuckDuckGoRedirect(href)})
	}
	return results, nil
}

type exaSearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type exaSearchResponse struct {
	Results []exaSearchResult `json:"results"`
}

func (r *Registry) searchExa(query string, limit int) ([]webSearchResult, error) {
	apiKey := os.Getenv("EXA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("EXA_API_KEY not set")
	}

	body, err := json.Marshal(map[string]any{"query": query, "numResults": limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.exa.ai/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, webSearchBodyCap))
	if err != nil {
		return nil, err
	}

	var parsed exaSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse exa response: %w", err)
	}

	var results []webSearchResult
	for _, res := range parsed.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, webSearchResult{Title: res.Title, URL: res.URL})
	}
	return results, nil
}

// unwrapDuckDuckGoRedirect turns "//duckduckgo.com/l/?uddg=<percent-encoded>"
// into the decoded destination URL.
func unwrapDuckDuckGoRedirect(href string) string {
	idx := strings.Index(href, "uddg=")
	if idx == -1 {
		return href
	}
	encoded := href[idx+len("uddg="):]
	if amp := strings.IndexByte(encoded, '&'); amp != -1 {
		encoded = encoded[:amp]
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return href
	}
	return decoded
}

var htmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
	"&lt;", "<",
	"&gt;", ">",
)

func decodeEntities(s string) string {
	return htmlEntityReplacer.Replace(s)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
