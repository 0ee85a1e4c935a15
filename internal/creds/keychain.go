package creds

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// securityKeychain reads generic passwords with the macOS `security` tool,
// the same store Claude Code writes its OAuth credentials to.
type securityKeychain struct{}

func (securityKeychain) Lookup(service, account string) ([]byte, error) {
	args := []string{"find-generic-password", "-s", service}
	if strings.TrimSpace(account) != "" {
		args = append(args, "-a", account)
	}
	args = append(args, "-w")

	out, err := exec.Command("security", args...).Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		if stderr != "" {
			return nil, fmt.Errorf("security find-generic-password: %s", stderr)
		}
		return nil, fmt.Errorf("security find-generic-password: %w", err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// DefaultSecretStore returns the platform secret store, or nil when the
// platform has none and the file fallback applies.
func DefaultSecretStore() SecretStore {
	if runtime.GOOS == "darwin" {
		return securityKeychain{}
	}
	return nil
}
