package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

// SeedSummary reports how many packages a seed file inserted or updated.
type SeedSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// PackagesService manages sponsorship packages and their deliverable templates.
type PackagesService struct {
	repo repository.PackagesRepository
}

// NewPackagesService creates a PackagesService.
func NewPackagesService(repo repository.PackagesRepository) *PackagesService {
	return &PackagesService{repo: repo}
}

// List returns every package.
func (s *PackagesService) List(ctx context.Context) ([]entity.SponsorshipPackage, error) {
	return s.repo.List(ctx)
}

// Get returns one package.
func (s *PackagesService) Get(ctx context.Context, id uuid.UUID) (*entity.SponsorshipPackage, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a package.
func (s *PackagesService) Create(ctx context.Context, req dto.PackageRequest) (*entity.SponsorshipPackage, error) {
	input, err := packageInput(req)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, input)
}

// Update replaces a package.
func (s *PackagesService) Update(ctx context.Context, id uuid.UUID, req dto.PackageRequest) (*entity.SponsorshipPackage, error) {
	input, err := packageInput(req)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a package. Deals keep their level label.
func (s *PackagesService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Seed upserts the packages of a YAML document:
//
//	packages:
//	  - name: Gold
//	    price: 25000
//	    slots: 4
//	    deliverables:
//	      - {title: Runway Banner, type: asset, due_days: 5}
func (s *PackagesService) Seed(ctx context.Context, r io.Reader) (SeedSummary, error) {
	var file dto.PackageSeedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return SeedSummary{}, invalidf("seed file is empty")
		}
		return SeedSummary{}, invalidf("invalid seed file: %v", err)
	}
	if len(file.Packages) == 0 {
		return SeedSummary{}, invalidf("seed file lists no packages")
	}

	inputs := make([]repository.PackageInput, 0, len(file.Packages))
	for i, req := range file.Packages {
		input, err := packageInput(req)
		if err != nil {
			return SeedSummary{}, invalidf("package %d: %v", i+1, err)
		}
		inputs = append(inputs, input)
	}

	summary := SeedSummary{Total: len(inputs)}
	for _, input := range inputs {
		_, inserted, err := s.repo.Upsert(ctx, input)
		if err != nil {
			return summary, err
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}
	return summary, nil
}

func packageInput(req dto.PackageRequest) (repository.PackageInput, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return repository.PackageInput{}, invalidf("package name is required")
	}
	if req.Price < 0 {
		return repository.PackageInput{}, invalidf("price cannot be negative")
	}
	if req.Slots < 0 {
		return repository.PackageInput{}, invalidf("slots cannot be negative")
	}
	template := make([]entity.DeliverableTemplate, 0, len(req.Template))
	seen := make(map[string]struct{}, len(req.Template))
	for i, entry := range req.Template {
		entry.Title = strings.TrimSpace(entry.Title)
		entry.Type = strings.ToLower(strings.TrimSpace(entry.Type))
		if entry.Title == "" {
			return repository.PackageInput{}, invalidf("deliverable %d has no title", i+1)
		}
		if entry.DueDays < 0 {
			return repository.PackageInput{}, invalidf("deliverable %q has negative due_days", entry.Title)
		}
		key := strings.ToLower(entry.Title)
		if _, dup := seen[key]; dup {
			return repository.PackageInput{}, ValidationError{Message: fmt.Sprintf("deliverable %q is listed twice", entry.Title)}
		}
		seen[key] = struct{}{}
		if entry.Type == "" {
			entry.Type = "asset"
		}
		template = append(template, entry)
	}
	return repository.PackageInput{Name: name, Price: req.Price, Slots: req.Slots, Template: template}, nil
}
