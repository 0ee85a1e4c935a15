package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhutch/claude-usage/internal/creds"
)

const (
	usageEndpoint = "https://api.anthropic.com/api/oauth/usage"

	// The endpoint is not a documented public API; it expects the same
	// request fingerprint the first-party client sends.
	userAgent      = "claude-code/2.0.32"
	anthropicBeta  = "oauth-2025-04-20"
	requestTimeout = 8 * time.Second

	maxBodyBytes = 1_000_000
)

// Client fetches one usage snapshot from the Anthropic OAuth usage endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     zerolog.Logger
}

func NewClient(logger zerolog.Logger) *Client {
	return NewClientForEndpoint(usageEndpoint, logger)
}

func NewClientForEndpoint(endpoint string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoint:   strings.TrimSpace(endpoint),
		logger:     logger,
	}
}

// Fetch issues a single authenticated GET and normalizes the response.
// No retries: a failure here is terminal for the invocation.
func (c *Client) Fetch(ctx context.Context, cred *creds.Credential) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("anthropic-beta", anthropicBeta)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read usage response: %w", err)
	}
	c.logger.Debug().
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("usage endpoint responded")

	if res.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Status: res.StatusCode}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UnexpectedResponseError{Status: res.StatusCode, Body: redactToken(summarizeBody(body), cred.AccessToken)}
	}

	var payload usagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &UnexpectedResponseError{Body: "decode failed: " + redactToken(summarizeBody(body), cred.AccessToken)}
	}
	return normalizeSnapshot(payload, cred, time.Now())
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type usagePayload struct {
	FiveHour     *windowPayload `json:"five_hour"`
	SevenDay     *windowPayload `json:"seven_day"`
	SevenDayOpus *windowPayload `json:"seven_day_opus"`
	ExtraUsage   *extraUsageRaw `json:"extra_usage"`
}

type windowPayload struct {
	// Utilization is reported as a percent, 0-100, possibly above 100.
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

type extraUsageRaw struct {
	IsEnabled    bool    `json:"is_enabled"`
	MonthlyLimit float64 `json:"monthly_limit"`
	UsedCredits  float64 `json:"used_credits"`
	Utilization  float64 `json:"utilization"`
}

func normalizeSnapshot(payload usagePayload, cred *creds.Credential, now time.Time) (*Snapshot, error) {
	if payload.FiveHour == nil && payload.SevenDay == nil {
		return nil, &UnexpectedResponseError{Body: "response carries no usage windows"}
	}

	out := &Snapshot{
		Plan:      planLabel(cred),
		FetchedAt: now.UTC(),
	}
	if payload.FiveHour != nil {
		out.Periods = append(out.Periods, toPeriod(PeriodSession, "5-hour session", payload.FiveHour))
	}
	if payload.SevenDay != nil {
		out.Periods = append(out.Periods, toPeriod(PeriodWeekly, "7-day rolling", payload.SevenDay))
	}
	// The Opus window only carries data on Max plans; skip the empty shape.
	if opus := payload.SevenDayOpus; opus != nil && (opus.Utilization > 0 || strings.TrimSpace(opus.ResetsAt) != "") {
		out.Periods = append(out.Periods, toPeriod(PeriodWeeklyOpus, "7-day (Opus)", opus))
	}
	if payload.ExtraUsage != nil && payload.ExtraUsage.IsEnabled {
		out.Extra = &ExtraUsage{
			Enabled:      true,
			MonthlyLimit: payload.ExtraUsage.MonthlyLimit,
			UsedCredits:  payload.ExtraUsage.UsedCredits,
			Utilization:  payload.ExtraUsage.Utilization,
		}
	}
	return out, nil
}

func toPeriod(kind PeriodKind, label string, win *windowPayload) Period {
	out := Period{
		Kind:        kind,
		Label:       label,
		Utilization: win.Utilization / 100,
	}
	if ts := strings.TrimSpace(win.ResetsAt); ts != "" {
		if reset, err := time.Parse(time.RFC3339, ts); err == nil {
			reset = reset.UTC()
			out.ResetsAt = &reset
		}
	}
	return out
}

func planLabel(cred *creds.Credential) string {
	plan := strings.TrimSpace(cred.SubscriptionType)
	if plan == "" {
		plan = "unknown"
	}
	return strings.ToUpper(plan)
}

// redactToken keeps echoed credential material out of error diagnostics.
func redactToken(s, token string) string {
	if strings.TrimSpace(token) == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "[redacted]")
}

func summarizeBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 180 {
		return s[:180] + "..."
	}
	return s
}
