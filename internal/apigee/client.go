package apigee

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	EdgeBaseURL = "https://api.enterprise.apigee.com/v1"
	XBaseURL    = "https://apigee.googleapis.com/v1"
)

// Client talks to the Apigee management API for a single organization.
// It is safe for concurrent use.
type Client struct {
	Org  string
	HTTP *http.Client

	rest *resty.Client
}

type options struct {
	baseURL   string
	verbose   bool
	logger    hclog.Logger
	qps       float64
	retries   int
	retryWait time.Duration
}

type Option func(*options)

// WithBaseURL overrides the management API base URL (default: Edge).
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithVerbose logs one line per request and response at debug level.
func WithVerbose(enabled bool, logger hclog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.logger = logger
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(qps float64) Option {
	return func(o *options) {
		o.qps = qps
	}
}

// WithRetries sets how many times idempotent reads are retried on transport
// errors, 429 and 5xx responses. Deletes are never retried.
func WithRetries(n int, wait time.Duration) Option {
	return func(o *options) {
		o.retries = n
		if wait > 0 {
			o.retryWait = wait
		}
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger hclog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("management api request", "method", req.Method, "url", req.URL.String())
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("management api error", "method", req.Method, "duration", dur, "error", err)
	} else {
		t.logger.Debug("management api response", "method", req.Method, "status", resp.StatusCode, "duration", dur)
	}
	return resp, err
}

type rateLimitedRoundTripper struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// restyLogger routes resty's internal messages to hclog. Request failures are
// reported by callers, so resty errors are only interesting when debugging.
type restyLogger struct {
	logger hclog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Trace(fmt.Sprintf(format, v...))
}

func NewClient(ctx context.Context, org string, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("apigee client: ctx is nil")
	}
	if org == "" {
		return nil, fmt.Errorf("apigee client: org is required")
	}

	o := &options{
		baseURL:   EdgeBaseURL,
		retryWait: 500 * time.Millisecond,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}
	if o.qps > 0 {
		burst := int(o.qps)
		if burst < 1 {
			burst = 1
		}
		transport = &rateLimitedRoundTripper{base: transport, limiter: rate.NewLimiter(rate.Limit(o.qps), burst)}
	}
	if ts != nil {
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	// Always provide an http.Client so verbose logging works even without a token.
	hc := &http.Client{Transport: transport}

	rc := resty.NewWithClient(hc).
		SetBaseURL(o.baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: o.logger}).
		SetRetryCount(o.retries).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(10 * o.retryWait).
		AddRetryCondition(retryIdempotentReads)

	return &Client{
		Org:  org,
		HTTP: hc,
		rest: rc,
	}, nil
}

func retryIdempotentReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
