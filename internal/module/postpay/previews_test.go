package postpay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeMockup(t *testing.T, staticDir, name, content string) string {
	t.Helper()
	path := filepath.Join(staticDir, "out", "mockups", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return "/static/out/mockups/" + name
}

func TestMaterialize(t *testing.T) {
	t.Run("copies previews into the order directory", func(t *testing.T) {
		staticDir := t.TempDir()
		store := NewPreviewStore(staticDir, zap.NewNop())

		item := &order.Item{ID: uuid.New(), Title: "Ceramic Mug"}
		item.PreviewURL = writeMockup(t, staticDir, "abc.png", "png-bytes")
		o := &order.Order{ID: uuid.New(), OrderNumber: "PF-1001", Items: []*order.Item{item}}

		require.NoError(t, store.Materialize(o))

		want := "/static/out/orders/" + o.ID.String() + "/" + item.ID.String() + ".png"
		assert.Equal(t, want, item.PreviewURL)

		copied, err := os.ReadFile(filepath.Join(
			staticDir, "out", "orders", o.ID.String(), item.ID.String()+".png"))
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(copied))
	})

	t.Run("leaves non-mockup urls alone", func(t *testing.T) {
		store := NewPreviewStore(t.TempDir(), zap.NewNop())

		item := &order.Item{ID: uuid.New(), PreviewURL: "https://cdn.example/p.png"}
		o := &order.Order{ID: uuid.New(), Items: []*order.Item{item}}

		require.NoError(t, store.Materialize(o))
		assert.Equal(t, "https://cdn.example/p.png", item.PreviewURL)
	})

	t.Run("skips previews already garbage collected", func(t *testing.T) {
		store := NewPreviewStore(t.TempDir(), zap.NewNop())

		item := &order.Item{ID: uuid.New(), PreviewURL: "/static/out/mockups/gone.png"}
		o := &order.Order{ID: uuid.New(), Items: []*order.Item{item}}

		require.NoError(t, store.Materialize(o))
		assert.Equal(t, "/static/out/mockups/gone.png", item.PreviewURL)
	})

	t.Run("rejects urls escaping the static root", func(t *testing.T) {
		store := NewPreviewStore(t.TempDir(), zap.NewNop())

		item := &order.Item{ID: uuid.New(), PreviewURL: "/static/out/mockups/../../../../etc/passwd"}
		o := &order.Order{ID: uuid.New(), Items: []*order.Item{item}}

		assert.Error(t, store.Materialize(o))
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		staticDir := t.TempDir()
		store := NewPreviewStore(staticDir, zap.NewNop())

		item := &order.Item{ID: uuid.New()}
		item.PreviewURL = writeMockup(t, staticDir, "abc.png", "png-bytes")
		o := &order.Order{ID: uuid.New(), Items: []*order.Item{item}}

		require.NoError(t, store.Materialize(o))
		first := item.PreviewURL
		require.NoError(t, store.Materialize(o))
		assert.Equal(t, first, item.PreviewURL)
	})
}
