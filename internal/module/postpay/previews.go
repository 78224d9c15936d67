package postpay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/printforge/server/internal/module/order"
	"go.uber.org/zap"
)

// mockupPrefix is where checkout-time previews live. They are periodically
// garbage collected, which is why paid orders get their own durable copy.
const mockupPrefix = "/static/out/mockups/"

// PreviewStore copies an order's ephemeral mockup previews into the order's
// own durable directory under the static root.
type PreviewStore struct {
	staticDir string
	logger    *zap.Logger
}

// NewPreviewStore creates a new preview store rooted at staticDir.
func NewPreviewStore(staticDir string, logger *zap.Logger) *PreviewStore {
	return &PreviewStore{staticDir: staticDir, logger: logger}
}

// Materialize copies every item preview still pointing at the ephemeral
// mockup area into static/out/orders/<orderID>/ and rewrites the item URLs.
// Items whose previews are already durable, external, or missing on disk are
// left untouched. Any write failure aborts, so the caller's transaction
// rolls back and the order stays claimed for a retry.
func (p *PreviewStore) Materialize(o *order.Order) error {
	for _, item := range o.Items {
		if !strings.HasPrefix(item.PreviewURL, mockupPrefix) {
			continue
		}

		src, err := p.resolve(item.PreviewURL)
		if err != nil {
			return err
		}
		if _, err := os.Stat(src); os.IsNotExist(err) {
			p.logger.Warn("mockup preview already gone, keeping original url",
				zap.String("order_number", o.OrderNumber),
				zap.String("preview", item.PreviewURL))
			continue
		}

		name := item.ID.String() + filepath.Ext(src)
		dst := filepath.Join(p.staticDir, "out", "orders", o.ID.String(), name)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("materialize preview for item %s: %w", item.ID, err)
		}

		item.PreviewURL = "/static/out/orders/" + o.ID.String() + "/" + name
	}
	return nil
}

// resolve maps a /static/... URL onto the static root, rejecting anything
// that escapes it.
func (p *PreviewStore) resolve(previewURL string) (string, error) {
	rel := strings.TrimPrefix(previewURL, "/static/")
	src := filepath.Join(p.staticDir, filepath.FromSlash(rel))

	root := filepath.Clean(p.staticDir)
	if !strings.HasPrefix(filepath.Clean(src), root+string(os.PathSeparator)) {
		return "", fmt.Errorf("preview url escapes static root: %s", previewURL)
	}
	return src, nil
}

// copyFile copies src to dst via a temp file and rename, so a crashed copy
// never leaves a half-written preview at the final path.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
