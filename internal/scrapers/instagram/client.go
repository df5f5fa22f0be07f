package instagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"mostracker/internal/assert"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseUrl   = "https://www.instagram.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

const (
	report_client_followers = "client.followers"
)

var ErrNoHandle = errors.New("no handle")

type Options struct {
	BaseUrl   string
	UserAgent string
	Timeout   time.Duration
	// CloudflareBypass wraps the transport with browser-like tls and headers.
	CloudflareBypass bool
}

// Client reads follower counts from the public profile page, there is no
// api involved so it relies on the og:description meta tag.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) Client {
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 15
	}

	tel = telemetry.NewScopedAPI("instagram", tel)

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", opts.UserAgent)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	telemetry.InstrumentResty(client, tel)

	return Client{http: client, tel: tel}
}

// FetchFollowers returns the follower count of a handle or the reason it
// could not be read.
func (c Client) FetchFollowers(ctx context.Context, handle string) (int64, error) {
	if handle == "" {
		return 0, ErrNoHandle
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		Get("/{handle}/")
	if err != nil {
		return 0, err
	}
	if res.IsError() {
		return 0, fmt.Errorf("unexpected status %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return 0, err
	}
	content, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content")
	if !ok {
		return 0, fmt.Errorf("profile page has no og:description")
	}
	return ParseDescription(content)
}

// ParseDescription extracts the follower count out of an og:description
// such as "12.5K Followers, 300 Following, 1,024 Posts - ...".
func ParseDescription(content string) (int64, error) {
	idx := strings.Index(strings.ToLower(content), " followers")
	if idx < 0 {
		return 0, fmt.Errorf("no follower count in %q", content)
	}
	fields := strings.Fields(content[:idx])
	if len(fields) == 0 {
		return 0, fmt.Errorf("no follower count in %q", content)
	}
	return ParseAbbreviated(fields[len(fields)-1])
}

// ParseAbbreviated parses counts the way profile pages print them:
// "1,234", "12.5K", "3M", "1.2B".
func ParseAbbreviated(text string) (int64, error) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if text == "" {
		return 0, fmt.Errorf("empty count")
	}

	multiplier := 1.0
	switch text[len(text)-1] {
	case 'k', 'K':
		multiplier = 1e3
	case 'm', 'M':
		multiplier = 1e6
	case 'b', 'B':
		multiplier = 1e9
	}
	if multiplier != 1 {
		text = text[:len(text)-1]
	}

	// only plain decimals, ParseFloat alone would also take "1e30", "0x1p3" or "Inf"
	if text == "" || strings.Trim(text, "0123456789.") != "" || strings.Count(text, ".") > 1 {
		return 0, fmt.Errorf("invalid count %q", text)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", text, err)
	}
	scaled := math.Round(value * multiplier)
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if scaled >= math.MaxInt64 {
		return 0, fmt.Errorf("count %q is out of range", text)
	}
	return int64(scaled), nil
}

// Followers is FetchFollowers with every failure turned into an absent
// count, the reason is reported as a warning.
func (c Client) Followers(ctx context.Context, handle string) history.Count {
	count, err := c.FetchFollowers(ctx, handle)
	if errors.Is(err, ErrNoHandle) {
		return history.None
	}
	if err != nil {
		c.tel.ReportWarning(report_client_followers, err, handle)
		return history.None
	}
	return history.Some(count)
}
