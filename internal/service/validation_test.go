package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
)

func TestNormalizeEmailValidatesSyntaxAndMX(t *testing.T) {
	resolver := &stubDNSResolver{
		mx: map[string]bool{
			"example.com": true,
		},
	}
	p := NewContactProcessor("US", WithDNSResolver(resolver))

	tests := map[string]struct {
		input   string
		want    string
		wantErr bool
	}{
		"normalizes case": {input: " Test@Example.com ", want: "test@example.com"},
		"missing domain":  {input: "invalid@", wantErr: true},
		"no mx record":    {input: "user@missingmx.com", wantErr: true},
		"dash label":      {input: "user@-bad.com", wantErr: true},
		"empty":           {input: "  ", wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := p.NormalizeEmail(context.Background(), tt.input)
			if tt.wantErr {
				var vErr ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("NormalizeEmail(%q) = %q, %v", tt.input, got, err)
			}
		})
	}
}

func TestNormalizeEmailWithoutResolver(t *testing.T) {
	p := NewContactProcessor("US", WithDNSResolver(nil))
	got, err := p.NormalizeEmail(context.Background(), "press@unknown-domain.com")
	if err != nil || got != "press@unknown-domain.com" {
		t.Fatalf("expected MX check to be skipped, got %q (%v)", got, err)
	}
}

func TestNormalizePhone(t *testing.T) {
	p := NewContactProcessor("US")
	got, err := p.NormalizePhone(" (415) 555-1234 ")
	if err != nil || got != "+14155551234" {
		t.Fatalf("unexpected normalized phone: %q (%v)", got, err)
	}
	if _, err := p.NormalizePhone("12345"); err == nil {
		t.Fatalf("expected invalid phone to be rejected")
	}
}

func TestNormalizeWebsite(t *testing.T) {
	p := NewContactProcessor("US")
	got, err := p.NormalizeWebsite("brand.com/about?utm_source=ads")
	if err != nil || got != "https://brand.com/about" {
		t.Fatalf("unexpected website: %q (%v)", got, err)
	}
	if _, err := p.NormalizeWebsite(" "); err == nil {
		t.Fatalf("expected empty website to be rejected")
	}
}

func TestCleanSocialLinksEnforcesDomainAndResolution(t *testing.T) {
	httpClient := &stubHTTPClient{
		responses: map[string]int{
			"HEAD https://www.linkedin.com/company/test-company": http.StatusOK,
			"HEAD https://facebook.com/page":                     http.StatusMethodNotAllowed,
			"GET https://facebook.com/page":                      http.StatusOK,
		},
	}
	p := NewContactProcessor("US", WithDNSResolver(&stubDNSResolver{}), WithLinkCheck(httpClient))

	result := p.CleanSocialLinks(context.Background(), []string{
		"https://www.linkedin.com/company/test-company?utm_source=newsletter",
		"http://facebook.com/page",
		"https://example.com/not-allowed",
		"https://instagram.com/missing",
	})

	if len(result) != 2 {
		t.Fatalf("expected 2 links, got %#v", result)
	}
	if result[0] != "https://www.linkedin.com/company/test-company" {
		t.Fatalf("linkedin not cleaned correctly: %s", result[0])
	}
	if result[1] != "https://facebook.com/page" {
		t.Fatalf("facebook fallback HEAD/GET failed: %s", result[1])
	}
}

func TestCleanSocialLinksKeepsFirstPerNetwork(t *testing.T) {
	p := NewContactProcessor("US")
	result := p.CleanSocialLinks(context.Background(), []string{
		"instagram.com/first",
		"https://www.instagram.com/second",
		"https://pinterest.com/board",
	})
	if len(result) != 2 || result[0] != "https://instagram.com/first" || result[1] != "https://pinterest.com/board" {
		t.Fatalf("unexpected links: %#v", result)
	}
}

type stubDNSResolver struct {
	mx map[string]bool
}

func (s *stubDNSResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	if s.mx == nil {
		return nil, errors.New("no mx")
	}
	if ok := s.mx[domain]; ok {
		return []*net.MX{{Host: "mail." + domain, Pref: 10}}, nil
	}
	return nil, errors.New("no mx")
}

type stubHTTPClient struct {
	responses map[string]int
}

func (c *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.responses == nil {
		return nil, errors.New("no response configured")
	}
	key := req.Method + " " + req.URL.String()
	status, ok := c.responses[key]
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}
