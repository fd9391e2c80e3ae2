package metalarchives

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"maexport/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/metalarchives")

var (
	ErrBadCredentials = fmt.Errorf("username or password was not supplied or was rejected")
	ErrNotModerator   = fmt.Errorf("account lacks moderator permissions")
)

// PagedRows is one batch of rows from a DataTables-style ajax endpoint,
// along with the total the server claims to hold across all pages.
type PagedRows struct {
	Rows  [][]string
	Total int
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	cache *pageCache
}

type ClientOptions struct {
	// defaults to https://www.metal-archives.com
	BaseUrl string
	// optional sqlite file caching fetched pages between development runs
	CachePath string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://www.metal-archives.com"
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	// transient fetch failures are retried here, nowhere else
	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Second)
	client.SetRetryMaxWaitTime(time.Second * 8)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500
	})

	telemetry.InstrumentResty(client, "scrapers/metalarchives/http")

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	if opts.CachePath != "" {
		c.cache, err = openPageCache(opts.CachePath)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the page cache, when one was opened.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

// SetSessionCookies installs presupplied login cookies, skipping the login
// round-trip entirely.
func (c *Client) SetSessionCookies(cookies []*http.Cookie) {
	c.Http.GetClient().Jar.SetCookies(c.BaseUrl, cookies)
}

// ParseSessionCookie splits a raw Cookie request header ("a=1; b=2") into
// cookies suitable for SetSessionCookies.
func ParseSessionCookie(raw string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}

// Login establishes a moderator session. It fails with ErrBadCredentials on
// missing/rejected credentials and ErrNotModerator when the account cannot
// reach moderator-only pages.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return ErrBadCredentials
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"loginUsername": username,
			"loginPassword": password,
			"origin":        "/",
		}).
		Post("/authentication/login")
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return err
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "login rejected")
		return ErrBadCredentials
	}

	return c.VerifyModerator(ctx)
}

// VerifyModerator probes a moderator-only page to confirm the session has
// the privileges the export needs.
func (c *Client) VerifyModerator(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:VerifyModerator")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/blacklist")
	if err != nil {
		span.SetStatus(codes.Error, "privilege probe failed")
		return err
	}
	if res.StatusCode() == 403 {
		span.SetStatus(codes.Error, "not a moderator")
		return ErrNotModerator
	}
	return nil
}

// FetchPage retrieves one HTML page as a parsed document. The endpoint is
// resolved against the client's base URL.
func (c *Client) FetchPage(ctx context.Context, endpoint string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:FetchPage")
	defer span.End()

	if c.cache != nil {
		body, err := c.cache.get(ctx, endpoint)
		if err == nil {
			span.SetStatus(codes.Ok, "CACHE HIT")
			return goquery.NewDocumentFromReader(bytes.NewReader(body))
		}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if res.StatusCode() >= 400 && res.StatusCode() != 404 {
		// 404 pages still carry markup the caller may want to inspect
		// (deactivated user profiles render as an error page)
		span.SetStatus(codes.Error, "bad status")
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, fmt.Errorf("parse %s: %w", endpoint, err)
	}

	if c.cache != nil {
		err = c.cache.set(ctx, endpoint, res.Body())
		if err != nil {
			span.RecordError(err)
		}
	}
	return doc, nil
}

// the site emits `"sEcho": ,` in its list responses, which no JSON parser
// will swallow
var brokenEchoField = regexp.MustCompile(`("sEcho":\s*),`)

// FetchPagedRows retrieves one page of a DataTables-backed listing.
func (c *Client) FetchPagedRows(ctx context.Context, endpoint string, query url.Values) (PagedRows, error) {
	ctx, span := tracer.Start(ctx, "client:FetchPagedRows")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return PagedRows{}, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "bad status")
		return PagedRows{}, fmt.Errorf("fetch %s: status %d", endpoint, res.StatusCode())
	}

	body := brokenEchoField.ReplaceAll(res.Body(), []byte("${1}0,"))
	rows, err := decodeRows(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode rows")
		return PagedRows{}, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return rows, nil
}
