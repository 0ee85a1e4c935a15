package usage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhutch/claude-usage/internal/creds"
)

type DoctorReport struct {
	Checks []DoctorCheck `json:"checks"`
}

// RunDoctor probes each credential source and the live endpoint.
func RunDoctor(ctx context.Context, logger zerolog.Logger) DoctorReport {
	var checks []DoctorCheck

	checks = append(checks, checkEnvOverride())
	checks = append(checks, checkCredentialSource("keychain", &creds.SecretStoreSource{Store: creds.DefaultSecretStore()}))
	checks = append(checks, checkCredentialSource("credentials file", &creds.FileSource{}))
	checks = append(checks, checkUsageFetch(ctx, logger, 8*time.Second))

	return DoctorReport{Checks: checks}
}

// Healthy is true when the live usage fetch succeeded; individual credential
// sources are allowed to fail as long as one of them worked.
func (r DoctorReport) Healthy() bool {
	for _, c := range r.Checks {
		if c.Name == "usage fetch" {
			return c.OK
		}
	}
	return false
}

func checkEnvOverride() DoctorCheck {
	if os.Getenv(creds.TokenEnvVar) != "" {
		return DoctorCheck{
			Name:    "env override",
			OK:      true,
			Details: creds.TokenEnvVar + " is set and takes precedence",
		}
	}
	return DoctorCheck{
		Name:    "env override",
		OK:      true,
		Details: creds.TokenEnvVar + " is not set (optional)",
	}
}

func checkCredentialSource(name string, source creds.Source) DoctorCheck {
	if _, err := source.Resolve(); err != nil {
		return DoctorCheck{Name: name, OK: false, Details: err.Error()}
	}
	return DoctorCheck{Name: name, OK: true, Details: "credential available"}
}

func checkUsageFetch(parent context.Context, logger zerolog.Logger, timeout time.Duration) DoctorCheck {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	cred, err := creds.NewDefaultResolver(logger).Resolve()
	if err != nil {
		return DoctorCheck{Name: "usage fetch", OK: false, Details: err.Error()}
	}

	client := NewClient(logger)
	defer client.Close()

	snapshot, err := client.Fetch(ctx, cred)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return DoctorCheck{Name: "usage fetch", OK: false, Details: "endpoint rejected the token (HTTP 401)"}
		}
		return DoctorCheck{Name: "usage fetch", OK: false, Details: err.Error()}
	}

	details := fmt.Sprintf("plan=%s", snapshot.Plan)
	for _, p := range snapshot.Periods {
		details += fmt.Sprintf(" %s=%.1f%%", p.Kind, p.Utilization*100)
	}
	return DoctorCheck{Name: "usage fetch", OK: true, Details: details}
}
