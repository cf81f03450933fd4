package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

// ErrUploadFailed wraps file storage failures. The deliverable is left unchanged.
var ErrUploadFailed = errors.New("upload failed")

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

// DeliverableUpdate is a deliverable after a change, plus whether the change made
// the deal activation ready.
type DeliverableUpdate struct {
	Deliverable entity.Deliverable `json:"deliverable"`
	DealReady   bool               `json:"deal_ready"`
}

// DeliverablesService runs the deliverable workflow.
type DeliverablesService struct {
	deliverables repository.DeliverablesRepository
	deals        repository.DealsRepository
	sponsors     repository.SponsorsRepository
	uploader     Uploader
	store        PipelineStore
}

// NewDeliverablesService wires a DeliverablesService.
func NewDeliverablesService(
	deliverables repository.DeliverablesRepository,
	deals repository.DealsRepository,
	sponsors repository.SponsorsRepository,
	uploader Uploader,
	store PipelineStore,
) *DeliverablesService {
	return &DeliverablesService{
		deliverables: deliverables,
		deals:        deals,
		sponsors:     sponsors,
		uploader:     uploader,
		store:        store,
	}
}

// ListByDeal returns the deliverables of a deal.
func (s *DeliverablesService) ListByDeal(ctx context.Context, dealID uuid.UUID, actor entity.Actor) ([]entity.Deliverable, error) {
	if _, err := s.visibleDeal(ctx, dealID, actor); err != nil {
		return nil, err
	}
	return s.deliverables.ListByDeal(ctx, dealID)
}

// UpdateStatus moves a deliverable through its workflow. Portal users may only
// hand work in; review outcomes are reserved for staff.
func (s *DeliverablesService) UpdateStatus(ctx context.Context, id uuid.UUID, req dto.StatusRequest, actor entity.Actor) (*DeliverableUpdate, error) {
	next := entity.DeliverableStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !next.Valid() {
		return nil, invalidf("unknown deliverable status %q", req.Status)
	}
	current, err := s.deliverables.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleDeal(ctx, current.DealID, actor); err != nil {
		return nil, err
	}
	if actor.IsSponsor() && (next == entity.DeliverableApproved || next == entity.DeliverableBlocked) {
		return nil, ErrForbidden
	}
	if err := current.Status.CanMoveTo(next); err != nil {
		return nil, ValidationError{Message: err.Error()}
	}

	updated, err := s.deliverables.UpdateStatus(ctx, id, next, trimmedOrNil(req.Notes))
	if err != nil {
		return nil, err
	}
	return &DeliverableUpdate{Deliverable: *updated, DealReady: s.checkReadiness(ctx, updated.DealID)}, nil
}

// Upload stores an asset for a deliverable and marks it uploaded. A second upload
// sends the deliverable to review.
func (s *DeliverablesService) Upload(ctx context.Context, id uuid.UUID, filename, contentType string, body io.Reader, actor entity.Actor) (*DeliverableUpdate, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrUploadFailed)
	}
	current, err := s.deliverables.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleDeal(ctx, current.DealID, actor); err != nil {
		return nil, err
	}
	next := entity.DeliverableUploaded
	if current.Status == entity.DeliverableUploaded {
		next = entity.DeliverablePendingReview
	}
	if err := current.Status.CanMoveTo(next); err != nil {
		return nil, ValidationError{Message: err.Error()}
	}

	url, err := s.uploader.Upload(ctx, filename, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	updated, err := s.deliverables.AttachAsset(ctx, id, url, next)
	if err != nil {
		return nil, err
	}
	log.Printf("service: deliverable uploaded id=%s deal=%s status=%s", id, updated.DealID, updated.Status)
	return &DeliverableUpdate{Deliverable: *updated, DealReady: s.checkReadiness(ctx, updated.DealID)}, nil
}

// checkReadiness bumps a Signed deal to Activation Ready once every deliverable
// has been handed in. Failures are logged; the deliverable change stands.
func (s *DeliverablesService) checkReadiness(ctx context.Context, dealID uuid.UUID) bool {
	if s.store == nil {
		return false
	}
	items, err := s.deliverables.ListByDeal(ctx, dealID)
	if err != nil {
		log.Printf("service: readiness check failed deal=%s err=%v", dealID, err)
		return false
	}
	if !entity.AllSubmitted(items) {
		return false
	}
	deal, ok := s.store.Get(dealID)
	if !ok {
		if err := s.store.Refresh(ctx); err != nil {
			log.Printf("service: readiness refresh failed deal=%s err=%v", dealID, err)
			return false
		}
		if deal, ok = s.store.Get(dealID); !ok {
			return false
		}
	}
	if deal.Status == entity.DealActivationReady {
		return true
	}
	if deal.Status != entity.DealSigned {
		return false
	}
	if _, err := s.store.Transition(ctx, dealID, entity.DealActivationReady, entity.OriginSystem); err != nil {
		log.Printf("service: readiness bump failed deal=%s err=%v", dealID, err)
		return false
	}
	return true
}

func (s *DeliverablesService) visibleDeal(ctx context.Context, dealID uuid.UUID, actor entity.Actor) (*entity.Deal, error) {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDeal(ctx, s.sponsors, deal, actor); err != nil {
		return nil, err
	}
	return deal, nil
}
