package charts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// snapshotTimeout bounds one Chrome navigation + capture.
const snapshotTimeout = 60 * time.Second

// Snapshot rasterizes a written chart document to PNG with headless
// Chrome. It launches a browser per call; callers guard it behind a flag
// since Chrome may not be installed where the analyzer runs.
func (r *Renderer) Snapshot(ctx context.Context, htmlPath, pngPath string) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("resolve chart path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("chart document not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	start := time.Now()
	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(1280, 960),
		chromedp.Navigate("file://"+abs),
		chromedp.WaitVisible("figure.chart", chromedp.ByQuery),
		chromedp.FullScreenshot(&buf, 100),
	); err != nil {
		return fmt.Errorf("rasterize chart document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(pngPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(pngPath, buf, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "chart snapshot written",
		slog.String("source", htmlPath),
		slog.String("snapshot", pngPath),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
