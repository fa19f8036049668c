package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/objectstore"
)

const (
	transcriptionCheckTimeout = 10 * time.Second
	storeCheckTimeout         = 5 * time.Second
)

// Pinger is satisfied by the shared database handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckTranscription verifies that the transcription provider is reachable
// and the key is accepted. The mock provider always passes.
func CheckTranscription(ctx context.Context, cfg config.Transcription) Result {
	const name = "Transcription provider"

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return Result{Name: name, Passed: true, Detail: "mock (no API key configured)"}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, transcriptionCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+key)

	client := &http.Client{Timeout: transcriptionCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (model %s)", base, cfg.Model)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case resp.StatusCode == http.StatusPaymentRequired:
		return Result{Name: name, Detail: "quota or billing issue"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckObjectStore verifies the upload bucket can be created or reached.
func CheckObjectStore(ctx context.Context, client objectstore.Client, bucket string) Result {
	const name = "Object store"
	if client == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	if err := client.EnsureBucket(checkCtx, bucket); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bucket %q unavailable (%v)", bucket, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q ready", bucket)}
}

// CheckDatabase verifies the database answers a ping.
func CheckDatabase(ctx context.Context, db Pinger, driver string) Result {
	const name = "Database"
	if db == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	if err := db.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s ping failed (%v)", driver, err)}
	}
	return Result{Name: name, Passed: true, Detail: driver + " reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (provider unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (provider unreachable)"
	}
	return err.Error()
}
