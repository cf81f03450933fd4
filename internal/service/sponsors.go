package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/agent"
	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/service/scoring"
)

const (
	defaultPerPage      = 20
	maxPerPage          = 100
	defaultInteractions = 50
)

// AgentClient runs AI actions.
type AgentClient interface {
	Invoke(ctx context.Context, req agent.Request) (agent.Result, error)
}

// SponsorDetail is a sponsor profile with its contacts.
type SponsorDetail struct {
	Profile  entity.SponsorProfile   `json:"profile"`
	Contacts []entity.SponsorContact `json:"contacts"`
}

// LeadScoreOutcome is a persisted AI lead score.
type LeadScoreOutcome struct {
	Profile entity.SponsorProfile `json:"profile"`
	Score   agent.LeadScore       `json:"score"`
	Signals scoring.ScoreResult   `json:"signals"`
}

// SponsorsService manages sponsor profiles, their contacts and relationship history.
type SponsorsService struct {
	sponsors     repository.SponsorsRepository
	contacts     repository.ContactsRepository
	interactions repository.InteractionsRepository
	processor    *ContactProcessor
	agent        AgentClient
}

// NewSponsorsService wires a SponsorsService.
func NewSponsorsService(
	sponsors repository.SponsorsRepository,
	contacts repository.ContactsRepository,
	interactions repository.InteractionsRepository,
	processor *ContactProcessor,
	agentClient AgentClient,
) *SponsorsService {
	if processor == nil {
		processor = NewContactProcessor("")
	}
	return &SponsorsService{
		sponsors:     sponsors,
		contacts:     contacts,
		interactions: interactions,
		processor:    processor,
		agent:        agentClient,
	}
}

// List returns sponsors visible to the actor. Portal users only see profiles they own.
func (s *SponsorsService) List(ctx context.Context, query dto.SponsorListQuery, actor entity.Actor) ([]entity.SponsorProfile, error) {
	page, perPage := pageBounds(query.Page, query.PerPage)
	filter := repository.SponsorFilter{
		Search:       query.Search,
		SponsorType:  entity.SponsorType(strings.ToLower(strings.TrimSpace(query.Type))),
		LeadCategory: entity.LeadCategory(strings.TrimSpace(query.Category)),
		Limit:        perPage,
		Offset:       (page - 1) * perPage,
	}
	if filter.SponsorType != "" && !filter.SponsorType.Valid() {
		return nil, invalidf("unknown sponsor type %q", query.Type)
	}
	if actor.IsSponsor() {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return s.sponsors.List(ctx, filter)
}

// Get returns a sponsor with its contacts.
func (s *SponsorsService) Get(ctx context.Context, id uuid.UUID, actor entity.Actor) (*SponsorDetail, error) {
	profile, err := s.visibleProfile(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contacts.ListBySponsor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SponsorDetail{Profile: *profile, Contacts: contacts}, nil
}

// Create validates and stores a sponsor profile. Portal users always own what they create.
func (s *SponsorsService) Create(ctx context.Context, req dto.SponsorRequest, actor entity.Actor) (*entity.SponsorProfile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	sponsorType := entity.SponsorType(strings.ToLower(strings.TrimSpace(req.SponsorType)))
	if sponsorType == "" {
		sponsorType = entity.SponsorTypeBrand
	}
	if !sponsorType.Valid() {
		return nil, invalidf("unknown sponsor type %q", req.SponsorType)
	}

	input := repository.SponsorInput{
		Name:        name,
		Industry:    trimmedOrNil(req.Industry),
		SponsorType: sponsorType,
		SocialLinks: s.processor.CleanSocialLinks(ctx, req.SocialLinks),
	}
	var err error
	if input.ContactEmail, err = s.optionalEmail(ctx, req.ContactEmail); err != nil {
		return nil, err
	}
	if input.ContactPhone, err = s.optionalPhone(req.ContactPhone); err != nil {
		return nil, err
	}
	if input.Website, err = s.optionalWebsite(req.Website); err != nil {
		return nil, err
	}
	if actor.IsSponsor() {
		owner := actor.UserID
		input.OwnerID = &owner
	} else if input.OwnerID, err = parseOptionalUUID(req.OwnerID, "owner_id"); err != nil {
		return nil, err
	}

	return s.sponsors.Create(ctx, input)
}

// Update patches a sponsor profile.
func (s *SponsorsService) Update(ctx context.Context, id uuid.UUID, req dto.SponsorPatchRequest, actor entity.Actor) (*entity.SponsorProfile, error) {
	if _, err := s.visibleProfile(ctx, id, actor); err != nil {
		return nil, err
	}

	patch := repository.SponsorPatch{Industry: req.Industry}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalidf("name cannot be empty")
		}
		patch.Name = &name
	}
	if req.SponsorType != nil {
		sponsorType := entity.SponsorType(strings.ToLower(strings.TrimSpace(*req.SponsorType)))
		if !sponsorType.Valid() {
			return nil, invalidf("unknown sponsor type %q", *req.SponsorType)
		}
		patch.SponsorType = &sponsorType
	}
	var err error
	if patch.ContactEmail, err = s.clearableEmail(ctx, req.ContactEmail); err != nil {
		return nil, err
	}
	if patch.ContactPhone, err = s.clearablePhone(req.ContactPhone); err != nil {
		return nil, err
	}
	if req.Website != nil {
		if strings.TrimSpace(*req.Website) == "" {
			patch.Website = req.Website
		} else if patch.Website, err = s.optionalWebsite(req.Website); err != nil {
			return nil, err
		}
	}
	if req.SocialLinks != nil {
		patch.SocialLinks = s.processor.CleanSocialLinks(ctx, *req.SocialLinks)
	}
	if req.OwnerID != nil {
		if actor.IsSponsor() {
			return nil, ErrForbidden
		}
		if patch.OwnerID, err = parseOptionalUUID(req.OwnerID, "owner_id"); err != nil {
			return nil, err
		}
	}

	return s.sponsors.Update(ctx, id, patch)
}

// ListContacts returns the contacts of a sponsor.
func (s *SponsorsService) ListContacts(ctx context.Context, sponsorID uuid.UUID, actor entity.Actor) ([]entity.SponsorContact, error) {
	if _, err := s.visibleProfile(ctx, sponsorID, actor); err != nil {
		return nil, err
	}
	return s.contacts.ListBySponsor(ctx, sponsorID)
}

// AddContact validates and stores a contact.
func (s *SponsorsService) AddContact(ctx context.Context, sponsorID uuid.UUID, req dto.ContactRequest, actor entity.Actor) (*entity.SponsorContact, error) {
	if _, err := s.visibleProfile(ctx, sponsorID, actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("contact name is required")
	}
	input := repository.ContactInput{Name: name, Role: trimmedOrNil(req.Role), IsPrimary: req.IsPrimary}
	var err error
	if input.Email, err = s.optionalEmail(ctx, req.Email); err != nil {
		return nil, err
	}
	if input.Phone, err = s.optionalPhone(req.Phone); err != nil {
		return nil, err
	}
	return s.contacts.Create(ctx, sponsorID, input)
}

// SetPrimaryContact makes a contact the sponsor's primary contact.
func (s *SponsorsService) SetPrimaryContact(ctx context.Context, sponsorID, contactID uuid.UUID, actor entity.Actor) error {
	if _, err := s.visibleProfile(ctx, sponsorID, actor); err != nil {
		return err
	}
	return s.contacts.SetPrimary(ctx, sponsorID, contactID)
}

// DeleteContact removes a contact.
func (s *SponsorsService) DeleteContact(ctx context.Context, sponsorID, contactID uuid.UUID, actor entity.Actor) error {
	if _, err := s.visibleProfile(ctx, sponsorID, actor); err != nil {
		return err
	}
	return s.contacts.Delete(ctx, sponsorID, contactID)
}

// ListInteractions returns the latest relationship entries of a sponsor.
func (s *SponsorsService) ListInteractions(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = defaultInteractions
	}
	return s.interactions.ListBySponsor(ctx, sponsorID, limit)
}

// LogInteraction appends an entry authored by the actor.
func (s *SponsorsService) LogInteraction(ctx context.Context, sponsorID uuid.UUID, req dto.InteractionRequest, actor entity.Actor) (*entity.SponsorInteraction, error) {
	kind := entity.InteractionKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		return nil, invalidf("unknown interaction kind %q", req.Kind)
	}
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return nil, invalidf("summary is required")
	}
	if _, err := s.sponsors.Get(ctx, sponsorID); err != nil {
		return nil, err
	}
	interaction := entity.SponsorInteraction{SponsorID: sponsorID, Kind: kind, Summary: summary}
	if actor.UserID != uuid.Nil {
		author := actor.UserID
		interaction.AuthorID = &author
	}
	if req.OccurredAt != nil {
		interaction.OccurredAt = *req.OccurredAt
	}
	return s.interactions.Create(ctx, interaction)
}

// ScoreLead asks the lead scoring function for a score and persists it. The
// category is derived from the score when the function leaves it out.
func (s *SponsorsService) ScoreLead(ctx context.Context, sponsorID uuid.UUID, requestID string) (*LeadScoreOutcome, error) {
	if s.agent == nil {
		return nil, errors.New("agent client is not configured")
	}
	profile, err := s.sponsors.Get(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contacts.ListBySponsor(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	signals := scoring.ComputeCompleteness(scoring.SignalsFromProfile(*profile, contacts))

	result, err := s.agent.Invoke(ctx, agent.Request{
		Action:    agent.ActionScoreLead,
		Params:    map[string]any{"sponsor": profile, "contacts": contacts, "signals": signals},
		RequestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	score, ok := result.(agent.LeadScore)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", agent.ActionScoreLead, result)
	}
	score.Score = scoring.ClampScore(score.Score)
	switch score.Category {
	case entity.LeadCategoryHigh, entity.LeadCategoryMedium, entity.LeadCategoryLow:
	default:
		score.Category = scoring.CategoryForScore(score.Score)
	}

	updated, err := s.sponsors.UpdateScore(ctx, sponsorID, score.Score, score.Category)
	if err != nil {
		return nil, err
	}
	return &LeadScoreOutcome{Profile: *updated, Score: score, Signals: signals}, nil
}

// GenerateBrandStory asks for a brand story and stores it on the profile.
func (s *SponsorsService) GenerateBrandStory(ctx context.Context, sponsorID uuid.UUID, params map[string]any, requestID string) (*entity.SponsorProfile, agent.BrandStory, error) {
	if s.agent == nil {
		return nil, agent.BrandStory{}, errors.New("agent client is not configured")
	}
	profile, err := s.sponsors.Get(ctx, sponsorID)
	if err != nil {
		return nil, agent.BrandStory{}, err
	}
	payload := map[string]any{"sponsor": profile}
	for key, value := range params {
		payload[key] = value
	}
	result, err := s.agent.Invoke(ctx, agent.Request{Action: agent.ActionBrandStory, Params: payload, RequestID: requestID})
	if err != nil {
		return nil, agent.BrandStory{}, err
	}
	story, ok := result.(agent.BrandStory)
	if !ok {
		return nil, agent.BrandStory{}, fmt.Errorf("unexpected %s result %T", agent.ActionBrandStory, result)
	}
	if strings.TrimSpace(story.Story) == "" {
		return nil, story, &agent.Error{Function: agent.FunctionSponsorAgent, Message: "brand story was empty"}
	}
	updated, err := s.sponsors.UpdateBrandStory(ctx, sponsorID, story.Story)
	if err != nil {
		return nil, story, err
	}
	return updated, story, nil
}

func (s *SponsorsService) visibleProfile(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.SponsorProfile, error) {
	profile, err := s.sponsors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsProfile(actor, profile) {
		return nil, ErrForbidden
	}
	return profile, nil
}

func ownsProfile(actor entity.Actor, profile *entity.SponsorProfile) bool {
	if !actor.IsSponsor() {
		return true
	}
	return profile.OwnerID != nil && *profile.OwnerID == actor.UserID
}

func (s *SponsorsService) optionalEmail(ctx context.Context, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	email, err := s.processor.NormalizeEmail(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &email, nil
}

func (s *SponsorsService) optionalPhone(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	phone, err := s.processor.NormalizePhone(*raw)
	if err != nil {
		return nil, err
	}
	return &phone, nil
}

func (s *SponsorsService) optionalWebsite(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	website, err := s.processor.NormalizeWebsite(*raw)
	if err != nil {
		return nil, err
	}
	return &website, nil
}

// clearableEmail keeps an explicit empty string so the column can be cleared.
func (s *SponsorsService) clearableEmail(ctx context.Context, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	if strings.TrimSpace(*raw) == "" {
		empty := ""
		return &empty, nil
	}
	return s.optionalEmail(ctx, raw)
}

func (s *SponsorsService) clearablePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	if strings.TrimSpace(*raw) == "" {
		empty := ""
		return &empty, nil
	}
	return s.optionalPhone(raw)
}

func pageBounds(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, invalidf("invalid %s", field)
	}
	return &id, nil
}
