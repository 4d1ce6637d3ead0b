// internal/antidetect/antidetect.go
package antidetect

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// UserAgentRotator rotates user agents
type UserAgentRotator struct {
	agents []string
	mu     sync.Mutex
	index  int
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = DefaultUserAgents()
	}
	return &UserAgentRotator{
		agents: agents,
	}
}

// GetNext returns the next user agent
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// GetRandom returns a random user agent
func (r *UserAgentRotator) GetRandom() string {
	return r.agents[rand.Intn(len(r.agents))]
}

// HeaderRotator produces browser-like request headers
type HeaderRotator struct {
	userAgents *UserAgentRotator
}

// NewHeaderRotator creates a header rotator drawing from the given agents.
func NewHeaderRotator(agents *UserAgentRotator) *HeaderRotator {
	if agents == nil {
		agents = NewUserAgentRotator(nil)
	}
	return &HeaderRotator{userAgents: agents}
}

// GetHeaders returns a set of headers
func (hr *HeaderRotator) GetHeaders() http.Header {
	headers := make(http.Header)

	headers.Set("User-Agent", hr.userAgents.GetRandom())
	headers.Set("Accept", getRandomAccept())
	headers.Set("Accept-Language", getRandomAcceptLanguage())
	headers.Set("DNT", "1")
	headers.Set("Upgrade-Insecure-Requests", "1")

	return headers
}

// DelayRandomizer provides random delays between page loads
type DelayRandomizer struct {
	min time.Duration
	max time.Duration
}

// NewDelayRandomizer creates a new delay randomizer. max below min is raised
// to min.
func NewDelayRandomizer(min, max time.Duration) *DelayRandomizer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &DelayRandomizer{min: min, max: max}
}

// GetDelay returns a random delay within the configured range
func (dr *DelayRandomizer) GetDelay() time.Duration {
	diff := dr.max - dr.min
	if diff <= 0 {
		return dr.min
	}
	return dr.min + time.Duration(rand.Int63n(int64(diff)))
}

// Wait sleeps for a random delay or until ctx is done.
func (dr *DelayRandomizer) Wait(ctx context.Context) error {
	d := dr.GetDelay()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BrowserFingerprinter generates per-session client identities
type BrowserFingerprinter struct {
	userAgents *UserAgentRotator
}

// BrowserFingerprint represents a browser fingerprint
type BrowserFingerprint struct {
	UserAgent string
	Viewport  Viewport
	Languages []string
	Platform  string
	Timezone  string
}

// Viewport represents screen dimensions
type Viewport struct {
	Width  int
	Height int
}

// NewBrowserFingerprinter creates a new browser fingerprinter
func NewBrowserFingerprinter(agents *UserAgentRotator) *BrowserFingerprinter {
	if agents == nil {
		agents = NewUserAgentRotator(nil)
	}
	return &BrowserFingerprinter{userAgents: agents}
}

// Generate creates a new browser fingerprint
func (bf *BrowserFingerprinter) Generate() *BrowserFingerprint {
	viewports := []Viewport{
		{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900}, {1280, 720},
	}

	languages := [][]string{
		{"fr-FR", "fr"},
		{"en-US", "en"},
		{"en-GB", "en"},
		{"de-DE", "de"},
	}

	timezones := []string{
		"Europe/Paris", "Europe/London", "Europe/Berlin", "Europe/Madrid",
	}

	ua := bf.userAgents.GetRandom()
	return &BrowserFingerprint{
		UserAgent: ua,
		Viewport:  viewports[rand.Intn(len(viewports))],
		Languages: languages[rand.Intn(len(languages))],
		Platform:  PlatformFor(ua),
		Timezone:  timezones[rand.Intn(len(timezones))],
	}
}

// PlatformFor returns the navigator.platform value consistent with ua.
func PlatformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"), strings.Contains(ua, "Mac OS X"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"), strings.Contains(ua, "X11"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

// CaptchaDetector detects anti-bot challenges in HTML content
type CaptchaDetector struct {
	extraMarkers []string
}

// CaptchaType represents the type of challenge
type CaptchaType int

const (
	NoCaptcha CaptchaType = iota
	RecaptchaV2
	RecaptchaV3
	HCaptcha
	FunCaptcha
	ChallengePage // interstitial bot checks (Cloudflare, DataDome and the like)
	CustomMarker
)

func (c CaptchaType) String() string {
	return [...]string{"none", "recaptcha_v2", "recaptcha_v3", "hcaptcha", "funcaptcha", "challenge_page", "custom"}[c]
}

// NewCaptchaDetector creates a new CAPTCHA detector. extraMarkers are
// site-specific lowercase substrings that also indicate a block.
func NewCaptchaDetector(extraMarkers ...string) *CaptchaDetector {
	return &CaptchaDetector{extraMarkers: extraMarkers}
}

// Detect detects challenge type in HTML content
func (cd *CaptchaDetector) Detect(html string) (CaptchaType, bool) {
	html = strings.ToLower(html)

	if strings.Contains(html, "g-recaptcha") {
		return RecaptchaV2, true
	}

	if strings.Contains(html, "recaptcha/api.js?render=") {
		return RecaptchaV3, true
	}

	if strings.Contains(html, "h-captcha") {
		return HCaptcha, true
	}

	if strings.Contains(html, "funcaptcha") || strings.Contains(html, "arkoselabs") {
		return FunCaptcha, true
	}

	if strings.Contains(html, "cf-challenge") || strings.Contains(html, "challenges.cloudflare.com") ||
		strings.Contains(html, "captcha-delivery.com") {
		return ChallengePage, true
	}

	for _, marker := range cd.extraMarkers {
		if marker != "" && strings.Contains(html, strings.ToLower(marker)) {
			return CustomMarker, true
		}
	}

	return NoCaptcha, false
}

// DefaultUserAgents returns the built-in desktop user agent list.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

func getRandomAccept() string {
	accepts := []string{
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}
	return accepts[rand.Intn(len(accepts))]
}

func getRandomAcceptLanguage() string {
	languages := []string{
		"fr-FR,fr;q=0.9,en;q=0.8",
		"en-US,en;q=0.9",
		"en-GB,en;q=0.9",
		"de-DE,de;q=0.9,en;q=0.8",
	}
	return languages[rand.Intn(len(languages))]
}
