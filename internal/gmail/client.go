package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/logging"
)

const (
	// userID is the Gmail alias for the authenticated account.
	userID = "me"

	// maxPageSize is the largest page the messages.list endpoint returns.
	maxPageSize = 100

	// CountLimit bounds the sent-to count query.
	CountLimit = 100
)

// ErrTransport marks failed Gmail API calls.
var ErrTransport = errors.New("gmail transport error")

// Client wraps the Gmail Users service with a circuit breaker, metrics and
// tracing.
type Client struct {
	svc     *gmail.UsersService
	cb      *gobreaker.CircuitBreaker
	metrics *instrumentation.Metrics
	logger  logging.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	metrics  *instrumentation.Metrics
	logger   logging.Logger
	settings *gobreaker.Settings
}

// WithMetrics records Google API operation metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithBreakerSettings replaces the default circuit breaker settings.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(o *clientOptions) { o.settings = &s }
}

// NewClient creates a Gmail client on top of an authorized HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return NewClientFromService(svc, opts...), nil
}

// NewClientFromService wraps an existing Gmail service.
func NewClientFromService(svc *gmail.Service, opts ...Option) *Client {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.DefaultLogger()
	}

	c := &Client{
		svc:     svc.Users,
		metrics: o.metrics,
		logger:  o.logger,
	}

	settings := DefaultBreakerSettings()
	if o.settings != nil {
		settings = *o.settings
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = isSuccessful
	}
	next := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String())
		if c.metrics != nil {
			c.metrics.RecordBreakerTransition(context.Background(), from.String(), to.String())
		}
		if next != nil {
			next(name, from, to)
		}
	}
	c.cb = gobreaker.NewCircuitBreaker(settings)

	return c
}

// DefaultBreakerSettings trips after more than five consecutive failures or
// a 60% failure ratio over at least ten requests.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
	}
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

// Search returns the ids of messages matching query, following pagination
// until maxResults ids are collected.
func (c *Client) Search(ctx context.Context, query string, maxResults int64) ([]string, error) {
	var ids []string
	err := c.call(ctx, instrumentation.OperationList, "", func(ctx context.Context) error {
		ids = nil
		pageToken := ""
		for {
			remaining := maxResults - int64(len(ids))
			if remaining <= 0 {
				break
			}

			pageSize := remaining
			if pageSize > maxPageSize {
				pageSize = maxPageSize
			}

			req := c.svc.Messages.List(userID).Q(query).MaxResults(pageSize).Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}

			res, err := req.Do()
			if err != nil {
				return err
			}
			for _, m := range res.Messages {
				ids = append(ids, m.Id)
			}

			if res.NextPageToken == "" {
				break
			}
			pageToken = res.NextPageToken
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %w", ErrTransport, query, err)
	}

	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	c.logger.Debug("search finished", "query", query, "results", len(ids))
	return ids, nil
}

// GetMessage retrieves a full Gmail message.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGet, messageID, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get message %s: %w", ErrTransport, messageID, err)
	}
	return msg, nil
}

// Send sends a raw RFC 5322 message and returns the new message id.
func (c *Client) Send(ctx context.Context, raw []byte) (string, error) {
	var sent *gmail.Message
	err := c.call(ctx, instrumentation.OperationSend, "", func(ctx context.Context) error {
		var err error
		sent, err = c.svc.Messages.Send(userID, &gmail.Message{Raw: encodeRaw(raw)}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: send message: %w", ErrTransport, err)
	}
	return sent.Id, nil
}

// CreateDraft stores a raw message as a draft and returns the draft id.
func (c *Client) CreateDraft(ctx context.Context, raw []byte) (string, error) {
	var draft *gmail.Draft
	err := c.call(ctx, instrumentation.OperationDraft, "", func(ctx context.Context) error {
		var err error
		draft, err = c.svc.Drafts.Create(userID, &gmail.Draft{
			Message: &gmail.Message{Raw: encodeRaw(raw)},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: create draft: %w", ErrTransport, err)
	}
	return draft.Id, nil
}

// SendDraft sends an existing draft and returns the sent message id.
func (c *Client) SendDraft(ctx context.Context, draftID string) (string, error) {
	var sent *gmail.Message
	err := c.call(ctx, instrumentation.OperationSendDraft, draftID, func(ctx context.Context) error {
		var err error
		sent, err = c.svc.Drafts.Send(userID, &gmail.Draft{Id: draftID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: send draft %s: %w", ErrTransport, draftID, err)
	}
	return sent.Id, nil
}

// CountSentTo returns how many sent messages are addressed to addr, up to
// CountLimit. A failed query is logged and counts as zero.
func (c *Client) CountSentTo(ctx context.Context, addr string) int {
	ids, err := c.Search(ctx, SentToQuery(addr), CountLimit)
	if err != nil {
		c.logger.Warn("could not count sent messages, assuming none",
			logging.KeyRecipient, logging.AnonymizeEmail(addr),
			logging.KeyError, err)
		return 0
	}
	return len(ids)
}

// SentToQuery returns the query matching sent messages addressed to addr.
func SentToQuery(addr string) string {
	return "in:sent to:" + addr
}

// call runs fn through the circuit breaker inside a Google API span and
// records the operation metric.
func (c *Client) call(ctx context.Context, operation, resourceID string, fn func(ctx context.Context) error) error {
	var attrs []attribute.KeyValue
	if resourceID != "" {
		attrs = append(attrs, attribute.String(instrumentation.SpanAttrResourceID, resourceID))
	}
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := c.execute(func() error { return fn(ctx) })

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if c.metrics != nil {
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	}
	return err
}

// execute only lets server side failures count against the breaker.
func (c *Client) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case http.StatusInternalServerError, http.StatusBadGateway,
					http.StatusServiceUnavailable, http.StatusTooManyRequests:
					return nil, err
				case http.StatusBadRequest, http.StatusUnauthorized,
					http.StatusForbidden, http.StatusNotFound:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	return err
}

func isSuccessful(err error) bool {
	var nce *nonCircuitError
	return err == nil || errors.As(err, &nce)
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func encodeRaw(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}
