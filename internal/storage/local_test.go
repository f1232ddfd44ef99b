package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.Upload(ctx, "tenant-a/doc.pdf", strings.NewReader("contract body")))

	r, err := l.Download(ctx, "tenant-a/doc.pdf")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "contract body", string(data))

	require.NoError(t, l.Delete(ctx, "tenant-a/doc.pdf"))
	_, err = l.Download(ctx, "tenant-a/doc.pdf")
	assert.Error(t, err)

	// Deleting again is a no-op.
	require.NoError(t, l.Delete(ctx, "tenant-a/doc.pdf"))
}

func TestLocalRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"../escape", "a/../../escape", "/etc/passwd", "."} {
		assert.Error(t, l.Upload(ctx, p, strings.NewReader("x")), "path %q", p)
	}
}
