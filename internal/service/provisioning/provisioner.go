// Package provisioning stamps out the deliverables a sponsor owes once a deal is signed.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

// DefaultDeliverables apply when a deal's level matches no package or the package has no template.
var DefaultDeliverables = []entity.DeliverableTemplate{
	{Title: "High Res Logo", Type: "asset", DueDays: 7},
	{Title: "Brand Guidelines", Type: "document", DueDays: 7},
	{Title: "Social Media Handles", Type: "social", DueDays: 3},
}

const (
	defaultQueueSize      = 256
	defaultReconcileEvery = 5 * time.Minute
	defaultReconcileBatch = 100
	provisionTimeout      = 30 * time.Second
	sourceDefaults        = "defaults"
)

// DealReader reads the deals that need provisioning.
type DealReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
	ListSignedWithoutDeliverables(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// PackageFinder resolves a deal level to a sponsorship package.
type PackageFinder interface {
	FindByName(ctx context.Context, name string) (*entity.SponsorshipPackage, error)
}

// DeliverableWriter inserts deliverables for a deal in one idempotent operation.
type DeliverableWriter interface {
	ProvisionForDeal(ctx context.Context, dealID uuid.UUID, items []repository.NewDeliverable) (repository.ProvisionResult, error)
}

// Options tune a Provisioner. Zero values pick defaults.
type Options struct {
	QueueSize         int
	ReconcileInterval time.Duration
	Now               func() time.Time
}

// Outcome reports what a provisioning attempt did.
type Outcome struct {
	DealID   uuid.UUID `json:"deal_id"`
	Source   string    `json:"source"`
	Inserted int       `json:"inserted"`
	Skipped  bool      `json:"skipped"`
}

// Provisioner creates deliverables for signed deals. Enqueued deals and the
// periodic reconciliation are both served by the goroutine started with Start.
type Provisioner struct {
	deals        DealReader
	packages     PackageFinder
	deliverables DeliverableWriter

	queue    chan uuid.UUID
	interval time.Duration
	now      func() time.Time
}

// New creates a provisioner.
func New(deals DealReader, packages PackageFinder, deliverables DeliverableWriter, opts Options) *Provisioner {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = defaultReconcileEvery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provisioner{
		deals:        deals,
		packages:     packages,
		deliverables: deliverables,
		queue:        make(chan uuid.UUID, opts.QueueSize),
		interval:     opts.ReconcileInterval,
		now:          opts.Now,
	}
}

// Enqueue schedules a deal for provisioning without blocking. When the queue is
// full the deal is left to the next reconciliation.
func (p *Provisioner) Enqueue(dealID uuid.UUID) {
	select {
	case p.queue <- dealID:
	default:
		log.Printf("provisioning: queue full, deferring deal=%s to reconciler", dealID)
	}
}

// Start runs the worker until ctx is cancelled. It reconciles once at startup.
func (p *Provisioner) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Provisioner) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.reconcileAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.provisionAndLog(ctx, id)
		case <-ticker.C:
			p.reconcileAndLog(ctx)
		}
	}
}

func (p *Provisioner) provisionAndLog(ctx context.Context, id uuid.UUID) {
	pctx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()
	outcome, err := p.Provision(pctx, id)
	if err != nil {
		log.Printf("provisioning: deal=%s err=%v", id, err)
		return
	}
	log.Printf("provisioning: deal=%s source=%s inserted=%d skipped=%t", id, outcome.Source, outcome.Inserted, outcome.Skipped)
}

func (p *Provisioner) reconcileAndLog(ctx context.Context) {
	count, err := p.Reconcile(ctx)
	if err != nil {
		log.Printf("provisioning: reconcile err=%v", err)
		return
	}
	if count > 0 {
		log.Printf("provisioning: reconciled deals=%d", count)
	}
}

// Reconcile provisions every Signed deal that has no deliverables and returns how
// many deals received deliverables.
func (p *Provisioner) Reconcile(ctx context.Context) (int, error) {
	ids, err := p.deals.ListSignedWithoutDeliverables(ctx, defaultReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list unprovisioned deals: %w", err)
	}
	provisioned := 0
	var errs []error
	for _, id := range ids {
		outcome, err := p.Provision(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("deal %s: %w", id, err))
			continue
		}
		if outcome.Inserted > 0 {
			provisioned++
		}
	}
	return provisioned, errors.Join(errs...)
}

// Provision creates the deliverables of a signed deal. A deal that already has
// deliverables, or is no longer in a signed state, is skipped.
func (p *Provisioner) Provision(ctx context.Context, dealID uuid.UUID) (Outcome, error) {
	outcome := Outcome{DealID: dealID}

	deal, err := p.deals.Get(ctx, dealID)
	if err != nil {
		return outcome, fmt.Errorf("load deal: %w", err)
	}
	if !signed(deal.Status) {
		outcome.Skipped = true
		return outcome, nil
	}

	template, source, err := p.Template(ctx, deal.Level)
	if err != nil {
		return outcome, err
	}
	outcome.Source = source

	result, err := p.deliverables.ProvisionForDeal(ctx, dealID, BuildDeliverables(template, p.now()))
	if err != nil {
		return outcome, fmt.Errorf("insert deliverables: %w", err)
	}
	outcome.Inserted = result.Inserted
	outcome.Skipped = result.Skipped
	return outcome, nil
}

// Template resolves the deliverable template for a deal level and names its source:
// the package name, or "defaults".
func (p *Provisioner) Template(ctx context.Context, level string) ([]entity.DeliverableTemplate, string, error) {
	if strings.TrimSpace(level) == "" {
		return DefaultDeliverables, sourceDefaults, nil
	}
	pkg, err := p.packages.FindByName(ctx, level)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			return DefaultDeliverables, sourceDefaults, nil
		}
		return nil, "", fmt.Errorf("resolve package %q: %w", level, err)
	}
	if len(pkg.Template) == 0 {
		return DefaultDeliverables, sourceDefaults, nil
	}
	return pkg.Template, pkg.Name, nil
}

// BuildDeliverables instantiates a template relative to now. Every row starts pending.
func BuildDeliverables(template []entity.DeliverableTemplate, now time.Time) []repository.NewDeliverable {
	items := make([]repository.NewDeliverable, 0, len(template))
	for _, entry := range template {
		kind := entry.Type
		if kind == "" {
			kind = "asset"
		}
		items = append(items, repository.NewDeliverable{
			Title:   entry.Title,
			Type:    kind,
			Status:  entity.DeliverablePending,
			DueDate: now.AddDate(0, 0, entry.DueDays),
		})
	}
	return items
}

func signed(status entity.DealStatus) bool {
	switch status {
	case entity.DealSigned, entity.DealActivationReady, entity.DealPaid:
		return true
	}
	return false
}
