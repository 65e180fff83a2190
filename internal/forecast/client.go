package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("forecast service unavailable")

type Forecast struct {
	TaskName       string  `json:"task_name"`
	EstimatedHours float64 `json:"estimated_hours"`
	Reasoning      string  `json:"reasoning"`
	Confidence     string  `json:"confidence"`
}

type activeTimeResponse struct {
	ActiveHours *float64 `json:"active_hours"`
}

type taskIDRequest struct {
	TaskID int64 `json:"task_id"`
}

type Options struct {
	BaseURL           string
	ForecastTimeout   time.Duration
	ActiveTimeTimeout time.Duration
	HTTPClient        *http.Client
}

// Client ходит в сервис прогнозов. Любой сбой возвращается как ошибка,
// решение о деградации принимает вызывающий.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	forecastTimeout   time.Duration
	activeTimeTimeout time.Duration
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("forecast base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL:           baseURL,
		httpClient:        httpClient,
		forecastTimeout:   opts.ForecastTimeout,
		activeTimeTimeout: opts.ActiveTimeTimeout,
	}
	if c.forecastTimeout <= 0 {
		c.forecastTimeout = 10 * time.Second
	}
	if c.activeTimeTimeout <= 0 {
		c.activeTimeTimeout = 5 * time.Second
	}
	return c, nil
}

// ForecastTime возвращает прогноз времени выполнения задачи
func (c *Client) ForecastTime(ctx context.Context, taskID int64) (Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.forecastTimeout)
	defer cancel()

	var out Forecast
	if err := c.post(ctx, "/api/tasks/forecast-time", taskID, &out); err != nil {
		return Forecast{}, err
	}
	return out, nil
}

// ActiveTime возвращает фактически затраченные часы по задаче
func (c *Client) ActiveTime(ctx context.Context, taskID int64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.activeTimeTimeout)
	defer cancel()

	var out activeTimeResponse
	if err := c.post(ctx, "/api/tasks/active-time", taskID, &out); err != nil {
		return 0, err
	}
	if out.ActiveHours == nil {
		return 0, fmt.Errorf("%w: active_hours missing", ErrUnavailable)
	}
	return *out.ActiveHours, nil
}

func (c *Client) post(ctx context.Context, path string, taskID int64, dst interface{}) error {
	body, err := json.Marshal(taskIDRequest{TaskID: taskID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
