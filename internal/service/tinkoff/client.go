// Package tinkoff is the brokerage gateway backed by the Tinkoff Invest
// public REST API.
package tinkoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/service/cache"
	xhttp "github.com/RiverSpider/PavelBot/pkg/http"
	"github.com/RiverSpider/PavelBot/pkg/logger"
)

const (
	DefaultBaseURL = "https://invest-public-api.tinkoff.ru/rest"

	servicePrefix = "tinkoff.public.invest.api.contract.v1."

	// UnknownInstrument is shown when an instrument name cannot be resolved.
	UnknownInstrument = "Неизвестный инструмент"

	codeUnauthenticated    = 16
	codePermissionDenied   = 7
	operationStateExecuted = "OPERATION_STATE_EXECUTED"
	idTypeFigi             = "INSTRUMENT_ID_TYPE_FIGI"
)

// Waiter throttles outgoing calls per key.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

type Config struct {
	BaseURL       string
	AppName       string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	NameCacheTTL  time.Duration
	// Location decides what "today" means for payment calendars.
	Location *time.Location
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Second
	}
	if out.RetryAttempts <= 0 {
		out.RetryAttempts = 1
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = 300 * time.Millisecond
	}
	if out.Location == nil {
		out.Location = time.UTC
	}
	return out
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tinkoff: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// Client is bound to one API token.
type Client struct {
	cfg     Config
	token   string
	key     string
	http    *xhttp.Client
	limiter Waiter
	names   *cache.TTLCache[string]
	log     *logger.Logger
	now     func() time.Time
}

func NewClient(cfg Config, token string, limiter Waiter, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:     cfg,
		token:   token,
		key:     cache.Fingerprint(token),
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: limiter,
		names:   cache.NewTTLCache[string](cfg.NameCacheTTL),
		log:     log.With(logger.String("component", "tinkoff")),
		now:     time.Now,
	}
}

// call posts req to Service/Method and decodes the answer into resp.
// Rejected credentials surface as models.ErrUnauthorized and are never
// retried; transport failures and 5xx are retried with linear backoff.
func (c *Client) call(ctx context.Context, service, method string, req, resp interface{}) error {
	endpoint := fmt.Sprintf("%s/%s%s/%s", c.cfg.BaseURL, servicePrefix, service, method)
	headers := map[string]string{"Authorization": "Bearer " + c.token}
	if c.cfg.AppName != "" {
		headers["x-app-name"] = c.cfg.AppName
	}

	var err error
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx, c.key); werr != nil {
				return werr
			}
		}

		err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  http.MethodPost,
			URL:     endpoint,
			Headers: headers,
			Body:    req,
		}, resp)
		if err == nil {
			return nil
		}
		err = mapError(err)
		if ctx.Err() != nil || !retryable(err) || attempt >= c.cfg.RetryAttempts {
			break
		}

		c.log.Warn("retrying broker call",
			logger.String("method", service+"/"+method),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if serr := sleep(ctx, c.cfg.RetryBackoff*time.Duration(attempt)); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%s/%s: %w", service, method, err)
}

func mapError(err error) error {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return err
	}

	apiErr := &APIError{Status: se.StatusCode, Message: strings.TrimSpace(string(se.Body))}
	var body errorBody
	if json.Unmarshal(se.Body, &body) == nil {
		apiErr.Code = body.Code
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}

	switch {
	case se.StatusCode == http.StatusUnauthorized,
		se.StatusCode == http.StatusForbidden,
		apiErr.Code == codeUnauthenticated,
		apiErr.Code == codePermissionDenied:
		return fmt.Errorf("%w: %w", models.ErrUnauthorized, apiErr)
	}
	return apiErr
}

func retryable(err error) bool {
	if errors.Is(err, models.ErrUnauthorized) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
