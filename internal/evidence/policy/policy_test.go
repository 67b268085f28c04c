package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/evidence/models"
)

func writePolicy(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadWithoutFileServesDefaults(t *testing.T) {
	f, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRolePolicy(), f.RolePolicy())
}

func TestOverridesReplaceOnlyNamedOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "operations:\n  RejectEvidenceCommand: [ADMIN, ANALYST]\n")

	f, err := Load(path, nil)
	require.NoError(t, err)
	p := f.RolePolicy()
	assert.NoError(t, p.Authorize(models.RoleAnalyst, models.CommandOperation(models.CommandReject)))
	assert.Error(t, p.Authorize(models.RoleViewer, models.OpDraftSeal), "defaults still apply")
}

func TestUnknownRoleIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "operations:\n  read: [INTERN]\n")

	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "INTERN")
}

func TestFailedReloadKeepsPreviousPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "operations:\n  read: [ADMIN]\n")
	f, err := Load(path, nil)
	require.NoError(t, err)

	writePolicy(t, path, "operations: [not, a, map")
	assert.Error(t, f.Reload())
	assert.Equal(t, []models.Role{models.RoleAdmin}, f.RolePolicy()[models.OpRead])
}

func TestWatchPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "operations:\n  read: [ADMIN]\n")
	f, err := Load(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before the write.
	time.Sleep(50 * time.Millisecond)
	writePolicy(t, path, "operations:\n  read: [ADMIN, VIEWER]\n")

	assert.Eventually(t, func() bool {
		return f.RolePolicy().Authorize(models.RoleViewer, models.OpRead) == nil
	}, 3*time.Second, 25*time.Millisecond)
}
