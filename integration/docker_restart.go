//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"testing"
)

// restartService restarts the catalog compose service in place.
// E2E_COMPOSE_SERVICE and E2E_COMPOSE_FILE override the defaults.
func restartService(t *testing.T, ctx context.Context) {
	t.Helper()

	service := os.Getenv("E2E_COMPOSE_SERVICE")
	if service == "" {
		service = "catalog"
	}

	args := []string{"compose"}
	if f := os.Getenv("E2E_COMPOSE_FILE"); f != "" {
		args = append(args, "-f", f)
	}
	args = append(args, "restart", service)

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("docker %v: %v\n%s", args, err, out)
	}
}
