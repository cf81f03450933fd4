package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/agent"
	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

// AgentService runs AI actions with persisted context and stores what they produce.
type AgentService struct {
	client      AgentClient
	sponsors    *SponsorsService
	deals       *DealsService
	dealsRepo   repository.DealsRepository
	activations repository.ActivationsRepository
	uploader    Uploader
}

// NewAgentService wires an AgentService.
func NewAgentService(
	client AgentClient,
	sponsors *SponsorsService,
	deals *DealsService,
	dealsRepo repository.DealsRepository,
	activations repository.ActivationsRepository,
	uploader Uploader,
) *AgentService {
	return &AgentService{
		client:      client,
		sponsors:    sponsors,
		deals:       deals,
		dealsRepo:   dealsRepo,
		activations: activations,
		uploader:    uploader,
	}
}

// Run invokes one action.
func (s *AgentService) Run(ctx context.Context, rawAction string, req dto.AgentRequest, requestID string) (*dto.AgentResponse, error) {
	action := agent.Action(strings.TrimSpace(rawAction))
	if !action.Valid() {
		return nil, invalidf("unknown agent action %q", rawAction)
	}
	sponsorID, err := parseOptionalUUID(req.SponsorID, "sponsor_id")
	if err != nil {
		return nil, err
	}
	dealID, err := parseOptionalUUID(req.DealID, "deal_id")
	if err != nil {
		return nil, err
	}

	switch action {
	case agent.ActionScoreLead:
		if sponsorID == nil {
			return nil, invalidf("sponsor_id is required for %s", action)
		}
		outcome, err := s.sponsors.ScoreLead(ctx, *sponsorID, requestID)
		if err != nil {
			return nil, err
		}
		return &dto.AgentResponse{Action: string(action), Result: outcome.Score, Stored: outcome.Profile}, nil

	case agent.ActionBrandStory:
		if sponsorID == nil {
			return nil, invalidf("sponsor_id is required for %s", action)
		}
		profile, story, err := s.sponsors.GenerateBrandStory(ctx, *sponsorID, req.Params, requestID)
		if err != nil {
			return nil, err
		}
		return &dto.AgentResponse{Action: string(action), Result: story, Stored: profile}, nil
	}

	params := make(map[string]any, len(req.Params)+3)
	for key, value := range req.Params {
		params[key] = value
	}
	if err := s.addContext(ctx, action, params, sponsorID, dealID); err != nil {
		return nil, err
	}

	result, err := s.client.Invoke(ctx, agent.Request{Action: action, Params: params, RequestID: requestID})
	if err != nil {
		return nil, err
	}
	resp := &dto.AgentResponse{Action: string(action), Result: result}

	switch typed := result.(type) {
	case agent.Moodboard:
		stored, err := s.storeMoodboard(ctx, typed)
		if err != nil {
			return nil, err
		}
		resp.Result = stored
	case agent.ContractDraft:
		if req.Attach && dealID != nil {
			deal, err := s.attachContract(ctx, *dealID, typed)
			if err != nil {
				return nil, err
			}
			resp.Stored = deal
		}
	}
	return resp, nil
}

func (s *AgentService) addContext(ctx context.Context, action agent.Action, params map[string]any, sponsorID, dealID *uuid.UUID) error {
	if sponsorID != nil {
		profile, err := s.sponsors.sponsors.Get(ctx, *sponsorID)
		if err != nil {
			return err
		}
		params["sponsor"] = profile
	}

	switch action {
	case agent.ActionDraftContract, agent.ActionROIReport:
		if dealID == nil {
			return invalidf("deal_id is required for %s", action)
		}
	}
	if dealID == nil {
		return nil
	}

	deal, err := s.dealsRepo.Get(ctx, *dealID)
	if err != nil {
		return err
	}
	params["deal"] = deal
	if action != agent.ActionROIReport {
		return nil
	}
	activations, err := s.activations.ListActivations(ctx, *dealID)
	if err != nil {
		return err
	}
	metrics, err := s.activations.ListROIMetrics(ctx, *dealID)
	if err != nil {
		return err
	}
	params["activations"] = activations
	params["metrics"] = metrics
	return nil
}

// storeMoodboard uploads inline images and replaces them with their public URL.
func (s *AgentService) storeMoodboard(ctx context.Context, board agent.Moodboard) (agent.Moodboard, error) {
	images := make([]agent.MoodboardImage, 0, len(board.Images))
	for i, image := range board.Images {
		if image.Base64 == "" {
			images = append(images, image)
			continue
		}
		if s.uploader == nil {
			return board, fmt.Errorf("%w: file storage is not configured", ErrUploadFailed)
		}
		raw, err := base64.StdEncoding.DecodeString(stripDataURI(image.Base64))
		if err != nil {
			return board, &agent.Error{Function: agent.FunctionMoodboard, Message: fmt.Sprintf("image %d is not valid base64", i+1)}
		}
		url, err := s.uploader.Upload(ctx, fmt.Sprintf("moodboard-%d.png", i+1), "image/png", bytes.NewReader(raw))
		if err != nil {
			return board, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		image.URL = url
		image.Base64 = ""
		images = append(images, image)
	}
	board.Images = images
	return board, nil
}

func (s *AgentService) attachContract(ctx context.Context, dealID uuid.UUID, draft agent.ContractDraft) (*entity.Deal, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrUploadFailed)
	}
	var doc strings.Builder
	if draft.Title != "" {
		doc.WriteString("# " + draft.Title + "\n\n")
	}
	doc.WriteString(draft.Content)
	url, err := s.uploader.Upload(ctx, fmt.Sprintf("contract-%s.md", dealID), "text/markdown", strings.NewReader(doc.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	deal, err := s.deals.AttachContract(ctx, dealID, url)
	if err != nil {
		return nil, err
	}
	log.Printf("service: contract attached deal=%s url=%s", dealID, url)
	return deal, nil
}

func stripDataURI(value string) string {
	if idx := strings.Index(value, ";base64,"); idx >= 0 && strings.HasPrefix(value, "data:") {
		return value[idx+len(";base64,"):]
	}
	return value
}
