package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

func TestMemoryWriteOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := AttachmentKey(id.NewTenantID(), id.NewDraftID(), id.NewAttachmentID())

	info, err := m.Put(ctx, key, strings.NewReader("hello"), PutOptions{Size: -1, ContentType: "text/plain"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size)

	_, err = m.Put(ctx, key, strings.NewReader("other"), PutOptions{Size: -1})
	assert.ErrorIs(t, err, sentinel.ErrAlreadyExists)

	rc, got, err := m.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", got.ContentType)

	require.NoError(t, m.Delete(ctx, key))
	_, _, err = m.Get(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAttachmentKeyIsTenantScoped(t *testing.T) {
	draftID, attID := id.NewDraftID(), id.NewAttachmentID()
	a := AttachmentKey(id.NewTenantID(), draftID, attID)
	b := AttachmentKey(id.NewTenantID(), draftID, attID)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "tenants/"))
}
