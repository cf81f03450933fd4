package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/agent"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
	"github.com/fashionos/sponsor-crm/internal/service/provisioning"
)

type mockSponsorsRepository struct {
	list        func(ctx context.Context, filter repository.SponsorFilter) ([]entity.SponsorProfile, error)
	get         func(ctx context.Context, id uuid.UUID) (*entity.SponsorProfile, error)
	create      func(ctx context.Context, input repository.SponsorInput) (*entity.SponsorProfile, error)
	update      func(ctx context.Context, id uuid.UUID, patch repository.SponsorPatch) (*entity.SponsorProfile, error)
	updateScore func(ctx context.Context, id uuid.UUID, score int, category entity.LeadCategory) (*entity.SponsorProfile, error)
	updateStory func(ctx context.Context, id uuid.UUID, story string) (*entity.SponsorProfile, error)
}

func (m *mockSponsorsRepository) List(ctx context.Context, filter repository.SponsorFilter) ([]entity.SponsorProfile, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockSponsorsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.SponsorProfile, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockSponsorsRepository) Create(ctx context.Context, input repository.SponsorInput) (*entity.SponsorProfile, error) {
	if m.create != nil {
		return m.create(ctx, input)
	}
	return nil, errors.New("create not implemented")
}

func (m *mockSponsorsRepository) Update(ctx context.Context, id uuid.UUID, patch repository.SponsorPatch) (*entity.SponsorProfile, error) {
	if m.update != nil {
		return m.update(ctx, id, patch)
	}
	return nil, errors.New("update not implemented")
}

func (m *mockSponsorsRepository) UpdateScore(ctx context.Context, id uuid.UUID, score int, category entity.LeadCategory) (*entity.SponsorProfile, error) {
	if m.updateScore != nil {
		return m.updateScore(ctx, id, score, category)
	}
	return nil, errors.New("updateScore not implemented")
}

func (m *mockSponsorsRepository) UpdateBrandStory(ctx context.Context, id uuid.UUID, story string) (*entity.SponsorProfile, error) {
	if m.updateStory != nil {
		return m.updateStory(ctx, id, story)
	}
	return nil, errors.New("updateBrandStory not implemented")
}

type mockContactsRepository struct {
	list       func(ctx context.Context, sponsorID uuid.UUID) ([]entity.SponsorContact, error)
	create     func(ctx context.Context, sponsorID uuid.UUID, input repository.ContactInput) (*entity.SponsorContact, error)
	setPrimary func(ctx context.Context, sponsorID, contactID uuid.UUID) error
	delete     func(ctx context.Context, sponsorID, contactID uuid.UUID) error
}

func (m *mockContactsRepository) ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]entity.SponsorContact, error) {
	if m.list != nil {
		return m.list(ctx, sponsorID)
	}
	return []entity.SponsorContact{}, nil
}

func (m *mockContactsRepository) Create(ctx context.Context, sponsorID uuid.UUID, input repository.ContactInput) (*entity.SponsorContact, error) {
	if m.create != nil {
		return m.create(ctx, sponsorID, input)
	}
	return nil, errors.New("create not implemented")
}

func (m *mockContactsRepository) SetPrimary(ctx context.Context, sponsorID, contactID uuid.UUID) error {
	if m.setPrimary != nil {
		return m.setPrimary(ctx, sponsorID, contactID)
	}
	return errors.New("setPrimary not implemented")
}

func (m *mockContactsRepository) Delete(ctx context.Context, sponsorID, contactID uuid.UUID) error {
	if m.delete != nil {
		return m.delete(ctx, sponsorID, contactID)
	}
	return errors.New("delete not implemented")
}

type mockInteractionsRepository struct {
	list   func(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error)
	create func(ctx context.Context, interaction entity.SponsorInteraction) (*entity.SponsorInteraction, error)
}

func (m *mockInteractionsRepository) ListBySponsor(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error) {
	if m.list != nil {
		return m.list(ctx, sponsorID, limit)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockInteractionsRepository) Create(ctx context.Context, interaction entity.SponsorInteraction) (*entity.SponsorInteraction, error) {
	if m.create != nil {
		return m.create(ctx, interaction)
	}
	return nil, errors.New("create not implemented")
}

type mockDealsRepository struct {
	list         func(ctx context.Context, filter repository.DealFilter) ([]entity.Deal, error)
	get          func(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
	create       func(ctx context.Context, input repository.DealInput) (*entity.Deal, error)
	update       func(ctx context.Context, id uuid.UUID, patch repository.DealPatch) (*entity.Deal, error)
	updateStatus func(ctx context.Context, id uuid.UUID, from, to entity.DealStatus) (*entity.Deal, error)
	delete       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockDealsRepository) List(ctx context.Context, filter repository.DealFilter) ([]entity.Deal, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockDealsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockDealsRepository) Create(ctx context.Context, input repository.DealInput) (*entity.Deal, error) {
	if m.create != nil {
		return m.create(ctx, input)
	}
	return nil, errors.New("create not implemented")
}

func (m *mockDealsRepository) Update(ctx context.Context, id uuid.UUID, patch repository.DealPatch) (*entity.Deal, error) {
	if m.update != nil {
		return m.update(ctx, id, patch)
	}
	return nil, errors.New("update not implemented")
}

func (m *mockDealsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.DealStatus) (*entity.Deal, error) {
	if m.updateStatus != nil {
		return m.updateStatus(ctx, id, from, to)
	}
	return nil, errors.New("updateStatus not implemented")
}

func (m *mockDealsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.delete != nil {
		return m.delete(ctx, id)
	}
	return errors.New("delete not implemented")
}

func (m *mockDealsRepository) ListSignedWithoutDeliverables(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

type mockDeliverablesRepository struct {
	list         func(ctx context.Context, dealID uuid.UUID) ([]entity.Deliverable, error)
	get          func(ctx context.Context, id uuid.UUID) (*entity.Deliverable, error)
	updateStatus func(ctx context.Context, id uuid.UUID, status entity.DeliverableStatus, notes *string) (*entity.Deliverable, error)
	attach       func(ctx context.Context, id uuid.UUID, assetURL string, status entity.DeliverableStatus) (*entity.Deliverable, error)
}

func (m *mockDeliverablesRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]entity.Deliverable, error) {
	if m.list != nil {
		return m.list(ctx, dealID)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockDeliverablesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Deliverable, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockDeliverablesRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DeliverableStatus, notes *string) (*entity.Deliverable, error) {
	if m.updateStatus != nil {
		return m.updateStatus(ctx, id, status, notes)
	}
	return nil, errors.New("updateStatus not implemented")
}

func (m *mockDeliverablesRepository) AttachAsset(ctx context.Context, id uuid.UUID, assetURL string, status entity.DeliverableStatus) (*entity.Deliverable, error) {
	if m.attach != nil {
		return m.attach(ctx, id, assetURL, status)
	}
	return nil, errors.New("attachAsset not implemented")
}

func (m *mockDeliverablesRepository) ProvisionForDeal(ctx context.Context, dealID uuid.UUID, items []repository.NewDeliverable) (repository.ProvisionResult, error) {
	return repository.ProvisionResult{}, errors.New("provision not implemented")
}

type mockPackagesRepository struct {
	upsert func(ctx context.Context, input repository.PackageInput) (*entity.SponsorshipPackage, bool, error)
	create func(ctx context.Context, input repository.PackageInput) (*entity.SponsorshipPackage, error)
}

func (m *mockPackagesRepository) List(ctx context.Context) ([]entity.SponsorshipPackage, error) {
	return []entity.SponsorshipPackage{}, nil
}

func (m *mockPackagesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.SponsorshipPackage, error) {
	return nil, repository.ErrPackageNotFound
}

func (m *mockPackagesRepository) FindByName(ctx context.Context, name string) (*entity.SponsorshipPackage, error) {
	return nil, repository.ErrPackageNotFound
}

func (m *mockPackagesRepository) Create(ctx context.Context, input repository.PackageInput) (*entity.SponsorshipPackage, error) {
	if m.create != nil {
		return m.create(ctx, input)
	}
	return nil, errors.New("create not implemented")
}

func (m *mockPackagesRepository) Update(ctx context.Context, id uuid.UUID, input repository.PackageInput) (*entity.SponsorshipPackage, error) {
	return nil, errors.New("update not implemented")
}

func (m *mockPackagesRepository) Upsert(ctx context.Context, input repository.PackageInput) (*entity.SponsorshipPackage, bool, error) {
	if m.upsert != nil {
		return m.upsert(ctx, input)
	}
	return nil, false, errors.New("upsert not implemented")
}

func (m *mockPackagesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("delete not implemented")
}

type mockActivationsRepository struct {
	activations []entity.SponsorActivation
	metrics     []entity.SponsorROIMetric
}

func (m *mockActivationsRepository) ListActivations(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorActivation, error) {
	return m.activations, nil
}

func (m *mockActivationsRepository) ListROIMetrics(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorROIMetric, error) {
	return m.metrics, nil
}

// fakeStore records what the services ask of the pipeline store.
type fakeStore struct {
	mu          sync.Mutex
	deals       map[uuid.UUID]entity.Deal
	upserts     []entity.Deal
	removed     []uuid.UUID
	transitions []entity.DealStatus
	origins     []entity.TransitionOrigin
	refreshes   int
	onRefresh   func(s *fakeStore)
	err         error
}

func newFakeStore(deals ...entity.Deal) *fakeStore {
	s := &fakeStore{deals: make(map[uuid.UUID]entity.Deal)}
	for _, deal := range deals {
		s.deals[deal.ID] = deal
	}
	return s
}

func (s *fakeStore) Get(id uuid.UUID) (entity.Deal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[id]
	return deal, ok
}

func (s *fakeStore) Upsert(deal entity.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[deal.ID] = deal
	s.upserts = append(s.upserts, deal)
}

func (s *fakeStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deals, id)
	s.removed = append(s.removed, id)
}

func (s *fakeStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshes++
	hook := s.onRefresh
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DealStatus) (entity.Deal, error) {
	return s.Transition(ctx, id, status, entity.OriginManual)
}

func (s *fakeStore) Transition(ctx context.Context, id uuid.UUID, status entity.DealStatus, origin entity.TransitionOrigin) (entity.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[id]
	if !ok {
		return entity.Deal{}, pipeline.ErrDealNotLoaded
	}
	s.transitions = append(s.transitions, status)
	s.origins = append(s.origins, origin)
	if s.err != nil {
		return deal, s.err
	}
	deal.Status = status
	s.deals[id] = deal
	return deal, nil
}

type fakeProvisioner struct {
	enqueued []uuid.UUID
	outcome  provisioning.Outcome
	err      error
}

func (p *fakeProvisioner) Enqueue(dealID uuid.UUID) {
	p.enqueued = append(p.enqueued, dealID)
}

func (p *fakeProvisioner) Provision(ctx context.Context, dealID uuid.UUID) (provisioning.Outcome, error) {
	p.outcome.DealID = dealID
	return p.outcome, p.err
}

type fakeUploader struct {
	uploads []string
	types   []string
	bodies  []string
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.uploads = append(u.uploads, filename)
	u.types = append(u.types, contentType)
	u.bodies = append(u.bodies, string(raw))
	return "https://storage.googleapis.com/assets/" + filename, nil
}

type fakeAgent struct {
	requests []agent.Request
	result   agent.Result
	err      error
}

func (a *fakeAgent) Invoke(ctx context.Context, req agent.Request) (agent.Result, error) {
	a.requests = append(a.requests, req)
	return a.result, a.err
}
