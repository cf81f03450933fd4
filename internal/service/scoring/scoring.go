// Package scoring derives profile completeness signals for sponsor leads. The
// signals are sent to the lead scoring function as context and map a score to its
// category.
package scoring

import (
	"net/url"
	"strings"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

const (
	categoryContact = "contact_completeness"
	categoryWebsite = "website_quality"
	categorySocial  = "social_presence"
	categoryBrand   = "brand_profile"
)

var freeHostingDomains = []string{
	"wordpress.com",
	"blogspot.com",
	"wixsite.com",
	"weebly.com",
	"squarespace.com",
	"medium.com",
	"substack.com",
	"godaddysites.com",
	"notion.site",
	"linktr.ee",
}

var socialHosts = map[string]string{
	"instagram.com": "instagram",
	"tiktok.com":    "tiktok",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"linkedin.com":  "linkedin",
	"pinterest.com": "pinterest",
	"facebook.com":  "facebook",
	"x.com":         "x",
	"twitter.com":   "x",
}

// ProfileSignals captures what is known about a sponsor.
type ProfileSignals struct {
	Emails     []string
	Phones     []string
	Contacts   int
	HasPrimary bool
	Website    string
	Socials    map[string]string
	Industry   string
	BrandStory string
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

// SignalsFromProfile collects the signals of a sponsor and its contacts.
func SignalsFromProfile(profile entity.SponsorProfile, contacts []entity.SponsorContact) ProfileSignals {
	signals := ProfileSignals{
		Contacts: len(contacts),
		Website:  deref(profile.Website),
		Socials:  ClassifySocialLinks(profile.SocialLinks),
		Industry: deref(profile.Industry),
	}
	signals.BrandStory = deref(profile.BrandStory)
	signals.Emails = appendValue(signals.Emails, profile.ContactEmail)
	signals.Phones = appendValue(signals.Phones, profile.ContactPhone)
	for _, contact := range contacts {
		signals.Emails = appendValue(signals.Emails, contact.Email)
		signals.Phones = appendValue(signals.Phones, contact.Phone)
		if contact.IsPrimary {
			signals.HasPrimary = true
		}
	}
	return signals
}

// ComputeCompleteness evaluates the signals and returns the score breakdown.
func ComputeCompleteness(input ProfileSignals) ScoreResult {
	breakdown := map[string]int{
		categoryContact: scoreContactCompleteness(input),
		categoryWebsite: scoreWebsiteQuality(input),
		categorySocial:  scoreSocialPresence(input),
		categoryBrand:   scoreBrandProfile(input),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return ScoreResult{
		Total:     total,
		Breakdown: breakdown,
	}
}

// CategoryForScore buckets a 0-100 score.
func CategoryForScore(score int) entity.LeadCategory {
	switch {
	case score >= 70:
		return entity.LeadCategoryHigh
	case score >= 40:
		return entity.LeadCategoryMedium
	default:
		return entity.LeadCategoryLow
	}
}

// ClampScore limits a score to 0-100.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClassifySocialLinks keys social profile URLs by network. Unknown hosts are dropped.
func ClassifySocialLinks(links []string) map[string]string {
	result := make(map[string]string)
	for _, link := range links {
		domain := extractDomain(link)
		if domain == "" {
			continue
		}
		for host, network := range socialHosts {
			if domain == host || strings.HasSuffix(domain, "."+host) {
				if _, seen := result[network]; !seen {
					result[network] = strings.TrimSpace(link)
				}
				break
			}
		}
	}
	return result
}

func scoreContactCompleteness(input ProfileSignals) int {
	score := 0
	if hasValue(input.Emails) {
		score += 10
	}
	if hasValue(input.Phones) {
		score += 10
	}
	if input.HasPrimary {
		score += 5
	}
	if input.Contacts >= 2 {
		score += 5
	}
	return min(score, 30)
}

func scoreWebsiteQuality(input ProfileSignals) int {
	site := strings.ToLower(strings.TrimSpace(input.Website))
	if site == "" {
		return 0
	}
	score := 10
	if strings.HasPrefix(site, "https://") {
		score += 10
	}
	if highQualityDomain(site) {
		score += 10
	}
	return min(score, 30)
}

func scoreSocialPresence(input ProfileSignals) int {
	if len(input.Socials) == 0 {
		return 0
	}

	score := 0
	if input.Socials["instagram"] != "" {
		score += 5
	}
	if input.Socials["tiktok"] != "" || input.Socials["youtube"] != "" {
		score += 5
	}
	if input.Socials["linkedin"] != "" {
		score += 5
	}
	if input.Socials["pinterest"] != "" || input.Socials["facebook"] != "" || input.Socials["x"] != "" {
		score += 5
	}
	return min(score, 20)
}

func scoreBrandProfile(input ProfileSignals) int {
	score := 0
	if strings.TrimSpace(input.Industry) != "" {
		score += 10
	}
	if len(strings.TrimSpace(input.BrandStory)) >= 40 {
		score += 10
	}
	return min(score, 20)
}

func hasValue(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func appendValue(values []string, value *string) []string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return values
	}
	return append(values, strings.TrimSpace(*value))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func highQualityDomain(raw string) bool {
	domain := extractDomain(raw)
	if domain == "" {
		return false
	}
	for _, bad := range freeHostingDomains {
		if domain == bad || strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return strings.Count(domain, ".") >= 1
}

func extractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	host := strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	host = strings.TrimPrefix(host, "www.")
	return host
}
