package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrRendererUnavailable means no browser binary could be located.
var ErrRendererUnavailable = errors.New("report: no chromium executable found")

// Renderer turns an HTML document into PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}

var chromiumCandidates = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/opt/google/chrome/chrome",
	"/snap/bin/chromium",
}

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// FindChromium returns configured when set, then the first well known install
// path that exists, then the first match on PATH.
func FindChromium(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrRendererUnavailable, configured, err)
		}
		return configured, nil
	}
	for _, p := range chromiumCandidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	for _, name := range chromiumBinaries {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrRendererUnavailable
}

// A4 with 20mm top/bottom and 15mm side margins, in inches.
const (
	paperWidth   = 8.27
	paperHeight  = 11.69
	marginTopBot = 20 / 25.4
	marginSides  = 15 / 25.4
)

// ChromeRenderer starts a headless browser per document and prints it.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewChromeRenderer(execPath string, timeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	return &ChromeRenderer{execPath: execPath, timeout: timeout, logger: logger}
}

func (c *ChromeRenderer) RenderPDF(ctx context.Context, html []byte) ([]byte, error) {
	path, err := FindChromium(c.execPath)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginTopBot).
				WithMarginBottom(marginTopBot).
				WithMarginLeft(marginSides).
				WithMarginRight(marginSides).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromium print to pdf: %w", err)
	}
	c.logger.Debug("pdf rendered", "chromium", path, "bytes", len(pdf))
	return pdf, nil
}
