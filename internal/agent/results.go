package agent

import "github.com/fashionos/sponsor-crm/internal/entity"

// Action names an AI operation.
type Action string

const (
	ActionScoreLead          Action = "score-lead"
	ActionBrandStory         Action = "generate-brand-story"
	ActionDraftPitch         Action = "draft-pitch"
	ActionSocialPlan         Action = "generate-social-plan"
	ActionDraftContract      Action = "draft-contract"
	ActionAnalyzeMedia       Action = "analyze-media"
	ActionROIReport          Action = "generate-roi-report"
	ActionGenerateEventDraft Action = "generate-event-draft"
	ActionGenerateMoodboard  Action = "generate-moodboard"
)

// Remote function names.
const (
	FunctionSponsorAgent = "sponsor-agent"
	FunctionEventDraft   = "generate-event-draft"
	FunctionMoodboard    = "generate-moodboard"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionScoreLead,
	ActionBrandStory,
	ActionDraftPitch,
	ActionSocialPlan,
	ActionDraftContract,
	ActionAnalyzeMedia,
	ActionROIReport,
	ActionGenerateEventDraft,
	ActionGenerateMoodboard,
}

// Valid reports whether the action is supported.
func (a Action) Valid() bool {
	for _, candidate := range Actions {
		if a == candidate {
			return true
		}
	}
	return false
}

// Function returns the remote function serving the action.
func (a Action) Function() string {
	switch a {
	case ActionGenerateEventDraft:
		return FunctionEventDraft
	case ActionGenerateMoodboard:
		return FunctionMoodboard
	}
	return FunctionSponsorAgent
}

// Result is the typed outcome of one action.
type Result interface {
	Action() Action
}

// LeadScore rates a sponsor's fit.
type LeadScore struct {
	Score     int                 `json:"score"`
	Category  entity.LeadCategory `json:"category,omitempty"`
	Reasoning string              `json:"reasoning,omitempty"`
}

func (LeadScore) Action() Action { return ActionScoreLead }

// BrandStory is a generated narrative for a sponsor profile.
type BrandStory struct {
	Story   string `json:"story"`
	Tagline string `json:"tagline,omitempty"`
}

func (BrandStory) Action() Action { return ActionBrandStory }

// Pitch is an outreach draft.
type Pitch struct {
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	KeyPoints []string `json:"key_points,omitempty"`
}

func (Pitch) Action() Action { return ActionDraftPitch }

// SocialPost is one entry of a social plan.
type SocialPost struct {
	Platform     string   `json:"platform"`
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags,omitempty"`
	ScheduledFor string   `json:"scheduled_for,omitempty"`
}

// SocialPlan is a sequence of sponsor mentions.
type SocialPlan struct {
	Posts []SocialPost `json:"posts"`
}

func (SocialPlan) Action() Action { return ActionSocialPlan }

// ContractDraft is a generated sponsorship agreement.
type ContractDraft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Clauses []string `json:"clauses,omitempty"`
}

func (ContractDraft) Action() Action { return ActionDraftContract }

// MediaAnalysis summarises coverage of a sponsor.
type MediaAnalysis struct {
	Summary    string   `json:"summary"`
	Sentiment  string   `json:"sentiment,omitempty"`
	Reach      int      `json:"reach,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

func (MediaAnalysis) Action() Action { return ActionAnalyzeMedia }

// ROIReport summarises the return of a deal.
type ROIReport struct {
	Summary         string             `json:"summary"`
	TotalValue      float64            `json:"total_value,omitempty"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

func (ROIReport) Action() Action { return ActionROIReport }

// EventDraft is a schema-constrained event proposal.
type EventDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	StartsAt    string   `json:"starts_at,omitempty"`
	Schedule    []string `json:"schedule,omitempty"`
}

func (EventDraft) Action() Action { return ActionGenerateEventDraft }

// MoodboardImage is one generated image. Base64 is cleared once the image is stored.
type MoodboardImage struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"b64_json,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// Moodboard is a set of generated reference images.
type Moodboard struct {
	Images  []MoodboardImage `json:"images"`
	Palette []string         `json:"palette,omitempty"`
}

func (Moodboard) Action() Action { return ActionGenerateMoodboard }
