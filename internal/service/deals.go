package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
	"github.com/fashionos/sponsor-crm/internal/service/provisioning"
)

// PipelineStore is the part of the pipeline store the services drive.
type PipelineStore interface {
	Get(id uuid.UUID) (entity.Deal, bool)
	Upsert(deal entity.Deal)
	Remove(id uuid.UUID)
	Refresh(ctx context.Context) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DealStatus) (entity.Deal, error)
	Transition(ctx context.Context, id uuid.UUID, status entity.DealStatus, origin entity.TransitionOrigin) (entity.Deal, error)
}

// Provisioner creates deliverables for signed deals.
type Provisioner interface {
	Enqueue(dealID uuid.UUID)
	Provision(ctx context.Context, dealID uuid.UUID) (provisioning.Outcome, error)
}

// DealsService manages deals. Status changes go through the pipeline store so the
// board sees them optimistically.
type DealsService struct {
	deals       repository.DealsRepository
	sponsors    repository.SponsorsRepository
	store       PipelineStore
	provisioner Provisioner
}

// NewDealsService wires a DealsService.
func NewDealsService(deals repository.DealsRepository, sponsors repository.SponsorsRepository, store PipelineStore, provisioner Provisioner) *DealsService {
	return &DealsService{deals: deals, sponsors: sponsors, store: store, provisioner: provisioner}
}

// List returns deals matching the query. Portal users only see deals of sponsors they own.
func (s *DealsService) List(ctx context.Context, query dto.DealListQuery, actor entity.Actor) ([]entity.Deal, error) {
	page, perPage := pageBounds(query.Page, query.PerPage)
	filter := repository.DealFilter{Limit: perPage, Offset: (page - 1) * perPage}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := entity.ParseDealStatus(strings.TrimSpace(part))
			if err != nil {
				return nil, ValidationError{Message: err.Error()}
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	var err error
	if filter.EventID, err = parseOptionalUUID(&query.EventID, "event_id"); err != nil {
		return nil, err
	}
	if filter.SponsorID, err = parseOptionalUUID(&query.SponsorID, "sponsor_id"); err != nil {
		return nil, err
	}
	if actor.IsSponsor() {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return s.deals.List(ctx, filter)
}

// Get returns one deal.
func (s *DealsService) Get(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Deal, error) {
	deal, err := s.deals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, deal, actor); err != nil {
		return nil, err
	}
	return deal, nil
}

// Create attaches a sponsor to an event. A deal created as Signed is queued for provisioning.
func (s *DealsService) Create(ctx context.Context, req dto.DealRequest) (*entity.Deal, error) {
	sponsorID, err := uuid.Parse(strings.TrimSpace(req.SponsorID))
	if err != nil {
		return nil, invalidf("invalid sponsor_id")
	}
	eventID, err := uuid.Parse(strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, invalidf("invalid event_id")
	}
	status := entity.DealLead
	if strings.TrimSpace(req.Status) != "" {
		if status, err = entity.ParseDealStatus(strings.TrimSpace(req.Status)); err != nil {
			return nil, ValidationError{Message: err.Error()}
		}
	}
	if status == entity.DealActivationReady {
		return nil, invalidf("%s is set automatically", status)
	}
	if req.CashValue < 0 || req.InKindValue < 0 {
		return nil, invalidf("deal values cannot be negative")
	}

	deal, err := s.deals.Create(ctx, repository.DealInput{
		SponsorID:   sponsorID,
		EventID:     eventID,
		Status:      status,
		Level:       strings.TrimSpace(req.Level),
		CashValue:   req.CashValue,
		InKindValue: req.InKindValue,
		ContractURL: trimmedOrNil(req.ContractURL),
	})
	if err != nil {
		return nil, err
	}
	s.store.Upsert(*deal)
	if deal.Status == entity.DealSigned && s.provisioner != nil {
		s.provisioner.Enqueue(deal.ID)
	}
	return deal, nil
}

// Update edits the commercial terms of a deal.
func (s *DealsService) Update(ctx context.Context, id uuid.UUID, req dto.DealPatchRequest) (*entity.Deal, error) {
	if (req.CashValue != nil && *req.CashValue < 0) || (req.InKindValue != nil && *req.InKindValue < 0) {
		return nil, invalidf("deal values cannot be negative")
	}
	patch := repository.DealPatch{
		CashValue:   req.CashValue,
		InKindValue: req.InKindValue,
		ContractURL: req.ContractURL,
	}
	if req.Level != nil {
		level := strings.TrimSpace(*req.Level)
		patch.Level = &level
	}
	deal, err := s.deals.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.store.Upsert(*deal)
	return deal, nil
}

// AttachContract stores the contract document URL of a deal.
func (s *DealsService) AttachContract(ctx context.Context, id uuid.UUID, contractURL string) (*entity.Deal, error) {
	return s.Update(ctx, id, dto.DealPatchRequest{ContractURL: &contractURL})
}

// Delete removes a deal.
func (s *DealsService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.deals.Delete(ctx, id); err != nil {
		return err
	}
	s.store.Remove(id)
	return nil
}

// UpdateStatus moves a deal through the pipeline store. A deal the store has not
// seen yet triggers one refresh before giving up.
func (s *DealsService) UpdateStatus(ctx context.Context, id uuid.UUID, rawStatus string) (entity.Deal, error) {
	status, err := entity.ParseDealStatus(strings.TrimSpace(rawStatus))
	if err != nil {
		return entity.Deal{}, ValidationError{Message: err.Error()}
	}
	deal, err := s.store.UpdateStatus(ctx, id, status)
	if !errors.Is(err, pipeline.ErrDealNotLoaded) {
		return deal, err
	}
	if err := s.store.Refresh(ctx); err != nil {
		return entity.Deal{}, err
	}
	if _, ok := s.store.Get(id); !ok {
		return entity.Deal{}, repository.ErrDealNotFound
	}
	return s.store.UpdateStatus(ctx, id, status)
}

// Provision creates the deliverables of a signed deal now.
func (s *DealsService) Provision(ctx context.Context, id uuid.UUID) (provisioning.Outcome, error) {
	if s.provisioner == nil {
		return provisioning.Outcome{}, errors.New("provisioner is not configured")
	}
	return s.provisioner.Provision(ctx, id)
}

func (s *DealsService) authorize(ctx context.Context, deal *entity.Deal, actor entity.Actor) error {
	return authorizeDeal(ctx, s.sponsors, deal, actor)
}

func authorizeDeal(ctx context.Context, sponsors repository.SponsorsRepository, deal *entity.Deal, actor entity.Actor) error {
	if !actor.IsSponsor() {
		return nil
	}
	profile, err := sponsors.Get(ctx, deal.SponsorID)
	if err != nil {
		if errors.Is(err, repository.ErrSponsorNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !ownsProfile(actor, profile) {
		log.Printf("service: portal access denied user=%s deal=%s", actor.UserID, deal.ID)
		return ErrForbidden
	}
	return nil
}
