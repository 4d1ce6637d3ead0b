// internal/browser/chromedp.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/valpere/AutoScrapexter/internal/antidetect"
)

// ChromeSession implements Renderer using one chromedp browser process.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	config      *BrowserConfig
	fingerprint *antidetect.BrowserFingerprint

	mu     sync.Mutex
	stats  SessionStats
	closed bool
}

// NewChromeSession starts a browser with the given fingerprint.
func NewChromeSession(ctx context.Context, config *BrowserConfig, fp *antidetect.BrowserFingerprint) (*ChromeSession, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	if fp == nil {
		fp = antidetect.NewBrowserFingerprinter(nil).Generate()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(fp.Viewport.Width, fp.Viewport.Height),
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if len(fp.Languages) > 0 {
		opts = append(opts, chromedp.Flag("lang", fp.Languages[0]))
	}

	// The allocator outlives the caller's context; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		config:      config,
		fingerprint: fp,
	}

	startCtx, stop := s.bind(ctx, config.Timeout)
	defer stop()
	if err := chromedp.Run(startCtx, identityActions(fp)...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

// identityActions presents fp to the sites: viewport, user agent with its
// platform and languages, and timezone.
func identityActions(fp *antidetect.BrowserFingerprint) []chromedp.Action {
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(fp.Viewport.Width), int64(fp.Viewport.Height)),
		emulation.SetUserAgentOverride(fp.UserAgent).
			WithPlatform(fp.Platform).
			WithAcceptLanguage(strings.Join(fp.Languages, ",")),
	}
	if fp.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(fp.Timezone))
	}
	return actions
}

// bind derives a run context from the tab that also ends when ctx does.
func (s *ChromeSession) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Render navigates to url and returns the document HTML.
func (s *ChromeSession) Render(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", errors.New("session is closed")
	}

	start := time.Now()
	runCtx, stop := s.bind(ctx, s.config.Timeout)
	defer stop()

	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	}
	if s.config.WaitForElement != "" {
		tasks = append(tasks, chromedp.WaitVisible(s.config.WaitForElement))
	}
	if s.config.WaitDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(s.config.WaitDelay))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	err := chromedp.Run(runCtx, tasks)
	s.record(time.Since(start), err, runCtx.Err() != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("navigation aborted: %w", ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("navigation timed out: %w", context.DeadlineExceeded)
		}
		return "", fmt.Errorf("navigation failed: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) record(loadTime time.Duration, err error, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stats.Errors++
		if timedOut {
			s.stats.Timeouts++
		}
		return
	}
	s.stats.PagesLoaded++
	if s.stats.PagesLoaded == 1 {
		s.stats.AverageLoadTime = loadTime
	} else {
		s.stats.AverageLoadTime = (s.stats.AverageLoadTime + loadTime) / 2
	}
}

// Fingerprint returns the identity this session presents.
func (s *ChromeSession) Fingerprint() *antidetect.BrowserFingerprint {
	return s.fingerprint
}

// Stats returns a snapshot of session statistics.
func (s *ChromeSession) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close shuts down the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.allocCancel()
	return nil
}

// ChromeFactory returns a Factory producing sessions with fresh fingerprints.
func ChromeFactory(config *BrowserConfig) Factory {
	fingerprinter := antidetect.NewBrowserFingerprinter(antidetect.NewUserAgentRotator(config.UserAgents))
	return func(ctx context.Context) (Renderer, error) {
		return NewChromeSession(ctx, config, fingerprinter.Generate())
	}
}
