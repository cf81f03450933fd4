package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	trackingPrefix     = "utm_"
	defaultPhoneRegion = "US"
	mxLookupTimeout    = 3 * time.Second
)

var allowedSocialDomains = map[string]string{
	"linkedin.com":  "linkedin",
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
	"x.com":         "x",
	"twitter.com":   "x",
}

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// HTTPClient abstracts HTTP requests for validation purposes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ContactProcessor normalises the contact details written to sponsor profiles and contacts.
type ContactProcessor struct {
	DefaultRegion string
	dnsResolver   DNSResolver
	httpClient    HTTPClient
}

// ContactProcessorOption configures optional dependencies.
type ContactProcessorOption func(*ContactProcessor)

// WithDNSResolver overrides the default DNS resolver. A nil resolver disables MX checks.
func WithDNSResolver(resolver DNSResolver) ContactProcessorOption {
	return func(p *ContactProcessor) {
		p.dnsResolver = resolver
	}
}

// WithLinkCheck makes social links pass a HEAD (or GET) request before they are kept.
func WithLinkCheck(client HTTPClient) ContactProcessorOption {
	return func(p *ContactProcessor) {
		p.httpClient = client
	}
}

// NewContactProcessor builds a processor with sensible defaults.
func NewContactProcessor(defaultRegion string, opts ...ContactProcessorOption) *ContactProcessor {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	p := &ContactProcessor{
		DefaultRegion: region,
		dnsResolver:   systemDNSResolver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NormalizeEmail lower-cases an address and checks its syntax and mail exchanger.
func (p *ContactProcessor) NormalizeEmail(ctx context.Context, raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !emailPattern.MatchString(email) {
		return "", ValidationError{Message: "invalid email address"}
	}
	domain := strings.SplitN(email, "@", 2)[1]
	if !isDomainValid(domain) {
		return "", ValidationError{Message: "invalid email domain"}
	}
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || asciiDomain == "" {
		return "", ValidationError{Message: "invalid email domain"}
	}
	if p.dnsResolver != nil && !p.hasMXRecord(ctx, asciiDomain) {
		return "", ValidationError{Message: "email domain does not accept mail"}
	}
	return email, nil
}

// NormalizePhone formats a number as E.164 using the default region for local numbers.
func (p *ContactProcessor) NormalizePhone(raw string) (string, error) {
	normalized := normalizePhone(raw, p.DefaultRegion)
	if normalized == "" {
		return "", ValidationError{Message: "invalid phone number"}
	}
	return normalized, nil
}

// NormalizeWebsite forces https and strips tracking parameters.
func (p *ContactProcessor) NormalizeWebsite(raw string) (string, error) {
	u, err := sanitizeURL(raw)
	if err != nil {
		return "", ValidationError{Message: "invalid website url"}
	}
	stripTracking(u)
	return u.String(), nil
}

// CleanSocialLinks keeps the first valid link per supported network.
func (p *ContactProcessor) CleanSocialLinks(ctx context.Context, links []string) []string {
	used := make(map[string]struct{})
	result := make([]string, 0, len(links))
	for _, raw := range links {
		platform, sanitized, ok := p.cleanSocialLink(ctx, raw)
		if !ok {
			continue
		}
		if _, exists := used[platform]; exists {
			continue
		}
		used[platform] = struct{}{}
		result = append(result, sanitized)
	}
	return result
}

func (p *ContactProcessor) cleanSocialLink(ctx context.Context, raw string) (string, string, bool) {
	u, err := sanitizeURL(raw)
	if err != nil {
		return "", "", false
	}
	platform, ok := hostMatchesAllowed(u.Hostname())
	if !ok {
		return "", "", false
	}
	stripTracking(u)
	if p.httpClient != nil && !p.urlResolves(ctx, u.String()) {
		return "", "", false
	}
	return platform, u.String(), true
}

func (p *ContactProcessor) hasMXRecord(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, mxLookupTimeout)
	defer cancel()
	records, err := p.dnsResolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

func (p *ContactProcessor) urlResolves(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
		if resp.StatusCode != http.StatusMethodNotAllowed {
			return false
		}
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err = p.httpClient.Do(getReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func hostMatchesAllowed(host string) (string, bool) {
	host = strings.ToLower(strings.Trim(strings.TrimSpace(host), "."))
	if host == "" {
		return "", false
	}
	for domain, platform := range allowedSocialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform, true
		}
	}
	return "", false
}

func sanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid url")
	}
	u.Scheme = "https"
	return u, nil
}

func stripTracking(u *url.URL) {
	if u == nil {
		return
	}
	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
