package dto

import "github.com/fashionos/sponsor-crm/internal/entity"

// PackageRequest creates or replaces a sponsorship package.
type PackageRequest struct {
	Name     string                       `json:"name" yaml:"name"`
	Price    float64                      `json:"price" yaml:"price"`
	Slots    int                          `json:"slots" yaml:"slots"`
	Template []entity.DeliverableTemplate `json:"deliverables_template" yaml:"deliverables"`
}

// PackageSeedFile is the YAML document accepted by the package seeder.
type PackageSeedFile struct {
	Packages []PackageRequest `yaml:"packages"`
}
