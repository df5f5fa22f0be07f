package twitter

import (
	"context"
	"errors"
	"fmt"
	"mostracker/internal/assert"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://api.twitter.com"

const (
	report_client_followers = "client.followers"
)

var (
	ErrNoToken  = errors.New("no bearer token configured")
	ErrNoHandle = errors.New("no handle")
)

type Options struct {
	BaseUrl     string
	BearerToken string
	Timeout     time.Duration
}

// Client reads public follower counts from the X v2 users endpoint.
type Client struct {
	http  *resty.Client
	token string
	tel   telemetry.API
}

func NewClient(opts Options, tel telemetry.API) Client {
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 15
	}

	tel = telemetry.NewScopedAPI("twitter", tel)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	if opts.BearerToken != "" {
		client.SetAuthToken(opts.BearerToken)
	}
	telemetry.InstrumentResty(client, tel)

	return Client{
		http:  client,
		token: opts.BearerToken,
		tel:   tel,
	}
}

type publicMetrics struct {
	FollowersCount *int64 `json:"followers_count"`
}

type userResponse struct {
	Data *struct {
		Username      string        `json:"username"`
		PublicMetrics publicMetrics `json:"public_metrics"`
	} `json:"data"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// FetchFollowers returns the follower count of a handle or the reason it
// could not be read.
func (c Client) FetchFollowers(ctx context.Context, handle string) (int64, error) {
	if handle == "" {
		return 0, ErrNoHandle
	}
	if c.token == "" {
		return 0, ErrNoToken
	}

	var body userResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		SetQueryParam("user.fields", "public_metrics").
		SetResult(&body).
		SetError(&body).
		Get("/2/users/by/username/{handle}")
	if err != nil {
		return 0, err
	}
	if res.IsError() {
		return 0, fmt.Errorf("unexpected status %s", res.Status())
	}
	if body.Data == nil {
		if len(body.Errors) > 0 {
			return 0, fmt.Errorf("%s: %s", body.Errors[0].Title, body.Errors[0].Detail)
		}
		return 0, fmt.Errorf("response has no user data")
	}
	count := body.Data.PublicMetrics.FollowersCount
	if count == nil {
		return 0, fmt.Errorf("response has no followers_count")
	}
	if *count < 0 {
		return 0, fmt.Errorf("negative followers_count %d", *count)
	}
	return *count, nil
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
