package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/skycast/internal/genai"
	"github.com/neexbeast/skycast/internal/metrics"
)

// MaxDays bounds forecast and history lengths.
const MaxDays = 14

// Generator is the model call boundary satisfied by *genai.Client.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		return ConditionCode(fl.Field().String()).Valid()
	})
	return v
}

// Client turns location queries into validated weather results.
type Client struct {
	gen     Generator
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewClient constructs a Client. m may be nil.
func NewClient(gen Generator, m *metrics.Metrics, log *slog.Logger) *Client {
	return &Client{gen: gen, metrics: m, log: log, now: time.Now}
}

type currentReply struct {
	Location      Location      `json:"location"`
	Temperature   Temperature   `json:"temperature"`
	FeelsLike     *Temperature  `json:"feelsLike"`
	Condition     string        `json:"condition" validate:"required"`
	ConditionCode ConditionCode `json:"conditionCode" validate:"condition"`
	Humidity      int           `json:"humidity" validate:"gte=0,lte=100"`
	Wind          Wind          `json:"wind"`
	Error         *string       `json:"error"`
}

type daysReply struct {
	Location Location   `json:"location"`
	Days     []DayEntry `json:"days" validate:"min=1,dive"`
	Error    *string    `json:"error"`
}

func modelError(e *string) (string, bool) {
	if e == nil {
		return "", false
	}
	msg := strings.TrimSpace(*e)
	return msg, msg != ""
}

// FetchCurrent asks the model for current conditions at query.
func (c *Client) FetchCurrent(ctx context.Context, query string) (*Snapshot, error) {
	query = strings.TrimSpace(query)

	var reply currentReply
	if err := c.ask(ctx, "current", currentPrompt(query), currentSchema, &reply, func() error {
		if msg, ok := modelError(reply.Error); ok {
			return notFound(msg)
		}
		return validate.Struct(reply)
	}); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Location:      reply.Location,
		Temperature:   reply.Temperature,
		FeelsLike:     reply.FeelsLike,
		Condition:     reply.Condition,
		ConditionCode: reply.ConditionCode,
		Humidity:      reply.Humidity,
		Wind:          reply.Wind,
		FetchedAt:     c.now().UTC(),
	}
	snap.Temperature.normalize()
	if snap.FeelsLike != nil {
		snap.FeelsLike.normalize()
	}
	snap.Wind.normalize()

	return snap, nil
}

// FetchForecast asks for a daily forecast of the given length.
func (c *Client) FetchForecast(ctx context.Context, query string, days int) ([]ForecastEntry, error) {
	return c.fetchDays(ctx, "forecast", query, days, forecastPrompt)
}

// FetchHistory asks for the observed weather of the past days.
func (c *Client) FetchHistory(ctx context.Context, query string, days int) ([]HistoryEntry, error) {
	return c.fetchDays(ctx, "history", query, days, historyPrompt)
}

func (c *Client) fetchDays(ctx context.Context, kind, query string, days int, prompt func(string, int) string) ([]DayEntry, error) {
	if days < 1 || days > MaxDays {
		return nil, fmt.Errorf("days must be between 1 and %d, got %d", MaxDays, days)
	}
	query = strings.TrimSpace(query)

	var reply daysReply
	if err := c.ask(ctx, kind, prompt(query, days), daysSchema(days), &reply, func() error {
		if msg, ok := modelError(reply.Error); ok {
			return notFound(msg)
		}
		return validate.Struct(reply)
	}); err != nil {
		return nil, err
	}

	entries := reply.Days
	if len(entries) > days {
		entries = entries[:days]
	}
	for i := range entries {
		entries[i].Max.normalize()
		entries[i].Min.normalize()
	}
	return entries, nil
}

// ask runs one model round trip, decodes into dst and applies check. Every failure is
// returned as a *QueryError.
func (c *Client) ask(ctx context.Context, kind, prompt string, schema *genai.Schema, dst any, check func() error) error {
	start := time.Now()

	raw, err := c.gen.GenerateJSON(ctx, prompt, schema)
	if err == nil {
		if err = json.Unmarshal(raw, dst); err != nil {
			err = fmt.Errorf("decoding %s reply: %w", kind, err)
		} else {
			err = check()
		}
	}

	if err == nil {
		c.metrics.ObserveQuery(kind, "success", time.Since(start))
		return nil
	}

	qe := AsQueryError(err)
	if qe.Kind == KindLocationNotFound {
		c.log.Info("model reported unknown location", "kind", kind, "message", qe.Message)
		c.metrics.ObserveQuery(kind, "not_found", time.Since(start))
		return qe
	}

	c.log.Warn("weather query failed", "kind", kind, "err", err)
	c.metrics.ObserveQuery(kind, "transport", time.Since(start))
	return qe
}
