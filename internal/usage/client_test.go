package usage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhutch/claude-usage/internal/creds"
)

func testCredential() *creds.Credential {
	return &creds.Credential{AccessToken: "tok-123", SubscriptionType: "pro", Source: "env"}
}

func TestFetchNormalizesWindows(t *testing.T) {
	reset5h := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	reset7d := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("anthropic-beta"); got != "oauth-2025-04-20" {
			t.Errorf("unexpected anthropic-beta header %q", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "claude-code/") {
			t.Errorf("unexpected user-agent header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"five_hour": {"utilization": 42.0, "resets_at": "` + reset5h.Format(time.RFC3339) + `"},
			"seven_day": {"utilization": 15.3, "resets_at": "` + reset7d.Format(time.RFC3339) + `"},
			"seven_day_opus": {"utilization": 0, "resets_at": ""}
		}`))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	defer client.Close()

	snapshot, err := client.Fetch(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected exactly one request, got %d", requests)
	}
	if snapshot.Plan != "PRO" {
		t.Fatalf("expected plan PRO, got %q", snapshot.Plan)
	}
	if len(snapshot.Periods) != 2 {
		t.Fatalf("expected empty opus window to be dropped, got %d periods", len(snapshot.Periods))
	}
	session := snapshot.Periods[0]
	if session.Kind != PeriodSession || session.Utilization != 0.42 {
		t.Fatalf("unexpected session period %+v", session)
	}
	if session.ResetsAt == nil || !session.ResetsAt.Equal(reset5h) {
		t.Fatalf("unexpected session reset %+v", session.ResetsAt)
	}
	weekly := snapshot.Periods[1]
	if weekly.Kind != PeriodWeekly || weekly.Utilization != 0.153 {
		t.Fatalf("unexpected weekly period %+v", weekly)
	}
}

func TestFetchKeepsOpusWindowWithData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"five_hour": {"utilization": 10, "resets_at": ""},
			"seven_day": {"utilization": 20, "resets_at": ""},
			"seven_day_opus": {"utilization": 5.5, "resets_at": ""}
		}`))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	snapshot, err := client.Fetch(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Periods) != 3 {
		t.Fatalf("expected opus window with data to be kept, got %d periods", len(snapshot.Periods))
	}
	if snapshot.Periods[2].Kind != PeriodWeeklyOpus {
		t.Fatalf("expected opus period last, got %q", snapshot.Periods[2].Kind)
	}
}

func TestFetchMapsExtraUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"five_hour": {"utilization": 10, "resets_at": ""},
			"seven_day": {"utilization": 20, "resets_at": ""},
			"extra_usage": {"is_enabled": true, "monthly_limit": 5000, "used_credits": 1250, "utilization": 0.25}
		}`))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	snapshot, err := client.Fetch(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Extra == nil || !snapshot.Extra.Enabled {
		t.Fatalf("expected extra usage to be mapped, got %+v", snapshot.Extra)
	}
	if snapshot.Extra.UsedCredits != 1250 || snapshot.Extra.MonthlyLimit != 5000 {
		t.Fatalf("unexpected extra usage amounts %+v", snapshot.Extra)
	}
}

func TestFetchReturnsAuthErrorOn401(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), testCredential())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected no retry after 401, got %d requests", requests)
	}
	if !strings.Contains(authErr.Error(), "log out and back in") {
		t.Fatalf("expected re-authentication guidance, got %q", authErr.Error())
	}
}

func TestFetchReturnsUnexpectedResponseOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), testCredential())

	var respErr *UnexpectedResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
	if respErr.Status != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", respErr.Status)
	}
	if !strings.Contains(respErr.Body, "upstream unavailable") {
		t.Fatalf("expected body in diagnostics, got %q", respErr.Body)
	}
}

func TestFetchReturnsUnexpectedResponseOnMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), testCredential())

	var respErr *UnexpectedResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
}

func TestFetchReturnsUnexpectedResponseWhenWindowsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), testCredential())

	var respErr *UnexpectedResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
}

func TestFetchErrorsNeverContainToken(t *testing.T) {
	cred := testCredential()

	// An endpoint that reflects the request back must not put the bearer
	// token into the error diagnostics.
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("bad request: " + r.Header.Get("Authorization")))
	}))
	defer echo.Close()

	client := NewClientForEndpoint(echo.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), cred)
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), cred.AccessToken) {
		t.Fatalf("fetch error leaked the token: %v", err)
	}
	var respErr *UnexpectedResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
	if !strings.Contains(respErr.Body, "[redacted]") {
		t.Fatalf("expected echoed token to be redacted, got %q", respErr.Body)
	}

	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer unauthorized.Close()

	client = NewClientForEndpoint(unauthorized.URL, zerolog.Nop())
	_, err = client.Fetch(context.Background(), cred)
	if err == nil || strings.Contains(err.Error(), cred.AccessToken) {
		t.Fatalf("auth error leaked the token: %v", err)
	}
}

func TestFetchWrapsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClientForEndpoint(server.URL, zerolog.Nop())
	_, err := client.Fetch(context.Background(), testCredential())
	if err == nil {
		t.Fatalf("expected network error")
	}
	var authErr *AuthError
	var respErr *UnexpectedResponseError
	if errors.As(err, &authErr) || errors.As(err, &respErr) {
		t.Fatalf("network failure should not map to auth or response error: %v", err)
	}
}

func TestPlanLabelDefaultsToUnknown(t *testing.T) {
	if got := planLabel(&creds.Credential{AccessToken: "t"}); got != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN, got %q", got)
	}
	if got := planLabel(&creds.Credential{AccessToken: "t", SubscriptionType: "max"}); got != "MAX" {
		t.Fatalf("expected MAX, got %q", got)
	}
}
