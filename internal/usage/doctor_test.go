package usage

import (
	"path/filepath"
	"testing"

	"github.com/okhutch/claude-usage/internal/creds"
)

func TestDoctorReportHealthyTracksUsageFetch(t *testing.T) {
	healthy := DoctorReport{Checks: []DoctorCheck{
		{Name: "keychain", OK: false},
		{Name: "usage fetch", OK: true},
	}}
	if !healthy.Healthy() {
		t.Fatalf("expected report with successful fetch to be healthy")
	}

	unhealthy := DoctorReport{Checks: []DoctorCheck{
		{Name: "keychain", OK: true},
		{Name: "usage fetch", OK: false},
	}}
	if unhealthy.Healthy() {
		t.Fatalf("expected report with failed fetch to be unhealthy")
	}

	empty := DoctorReport{}
	if empty.Healthy() {
		t.Fatalf("expected empty report to be unhealthy")
	}
}

func TestCheckEnvOverrideIsInformational(t *testing.T) {
	t.Setenv(creds.TokenEnvVar, "")
	check := checkEnvOverride()
	if !check.OK {
		t.Fatalf("missing env override should not fail the check")
	}

	t.Setenv(creds.TokenEnvVar, "tok")
	check = checkEnvOverride()
	if !check.OK {
		t.Fatalf("present env override should pass the check")
	}
}

func TestCheckCredentialSourceReportsFailure(t *testing.T) {
	source := &creds.FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	check := checkCredentialSource("credentials file", source)
	if check.OK {
		t.Fatalf("expected missing file to fail the check")
	}
	if check.Details == "" {
		t.Fatalf("expected failure details")
	}
}
