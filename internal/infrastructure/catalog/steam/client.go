package steam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL   = "https://store.steampowered.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxBodyBytes     = 8 << 20
)

type Options struct {
	BaseURL     string
	Language    string
	CountryCode string
	Timeout     time.Duration
	MaxRetries  int
	Logger      *slog.Logger
}

// Client reads the Steam store search pages and the appdetails API.
type Client struct {
	baseURL     string
	language    string
	countryCode string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	language := opts.Language
	if language == "" {
		language = "schinese"
	}
	countryCode := opts.CountryCode
	if countryCode == "" {
		countryCode = "CN"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := resilience.DefaultConfig().WithRetries(opts.MaxRetries).WithAttemptTimeout(timeout)
	return &Client{
		baseURL:     baseURL,
		language:    language,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    resilience.NewExecutor(cfg, opts.Logger),
	}
}

// StoreURL is the public store page of an app.
func (c *Client) StoreURL(id string) string {
	return c.baseURL + "/app/" + url.PathEscape(id) + "/"
}

func (c *Client) Listing(ctx context.Context, query domain.ListingQuery) ([]domain.CatalogItem, error) {
	params := c.baseParams()
	params.Set("ndl", "1")
	switch query.Surface {
	case domain.SurfaceSearch:
		params.Set("term", query.Term)
	case domain.SurfaceSpecials:
		params.Set("specials", "1")
	case domain.SurfaceFree:
		params.Set("maxprice", "free")
	case domain.SurfaceTop:
		params.Set("filter", rankingFilter(query.Ranking))
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "steam listing", fmt.Errorf("unknown surface %q", query.Surface))
	}
	if query.Surface != domain.SurfaceFree && query.MaxPrice != nil && *query.MaxPrice > 0 {
		params.Set("maxprice", strconv.Itoa(int(*query.MaxPrice)))
	}

	body, err := c.fetch(ctx, "steam.listing", "/search/", params)
	if err != nil {
		return nil, err
	}
	items, err := parseListing(bytes.NewReader(body), query.Limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "steam listing", err)
	}
	return items, nil
}

func (c *Client) Details(ctx context.Context, id string) (*domain.ItemDetails, error) {
	params := c.baseParams()
	params.Set("appids", id)

	body, err := c.fetch(ctx, "steam.details", "/api/appdetails", params)
	if err != nil {
		return nil, err
	}
	return parseDetails(id, body)
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("l", c.language)
	params.Set("cc", c.countryCode)
	return params
}

func (c *Client) fetch(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("steam", operation, resp)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded(operation, err)
	}
	return body, nil
}

func rankingFilter(mode domain.RankingMode) string {
	switch mode {
	case domain.RankingTrendingNew:
		return "popularnew"
	case domain.RankingTrendingWeek:
		return "trendingweek"
	default:
		return "topsellers"
	}
}
