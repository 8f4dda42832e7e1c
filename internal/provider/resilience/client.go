package resilience

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without contacting the upstream while the
	// breaker is open or its half-open probe slots are taken.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable stops a retry whose request body cannot be rewound.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name keys the breaker and the registry entry.
	Name    string
	Timeout time.Duration

	// MaxRetries counts attempts after the first, made on transport errors
	// and 5xx responses. Zero sends each request once.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client under Name.
	Registry *Registry
}

// DefaultClientConfig returns a config with a 10s timeout and no retries.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client sends HTTP requests through a circuit breaker, retrying with
// exponential backoff when configured to.
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retries uint64
	initial time.Duration
	max     time.Duration
}

// NewClient builds a Client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.CircuitBreaker == nil {
		cfg.CircuitBreaker = defaults.CircuitBreaker
	}

	c := &Client{
		name:    cfg.Name,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type param, not response
		retries: cfg.MaxRetries,
		initial: cfg.InitialInterval,
		max:     cfg.MaxInterval,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

func (c *Client) Name() string {
	return c.name
}

// Do sends req under the request's context. A 4xx response is returned as
// is. A 5xx counts against the breaker and, once retries run out, the last
// one is returned with a nil error so the caller can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initial
	bo.MaxInterval = c.max
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)

	var last *http.Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		out, err := attemptRequest(req, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			return c.send(out)
		})
		if last != nil {
			discard(last)
		}
		last = resp

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}, policy)

	if last != nil {
		return last, nil
	}
	return nil, err
}

// send performs one round trip, turning a 5xx into a *ServerError while
// still handing back the response.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// attemptRequest clones req for the given attempt, rewinding its body on
// every attempt after the first.
func attemptRequest(req *http.Request, attempt int) (*http.Request, error) {
	out := req.Clone(req.Context())
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replaying request body: %w", err)
	}
	out.Body = body
	return out, nil
}

// ServerError reports a 5xx upstream status.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
