package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"agendafacil/internal/model"
)

// ServiceConfig is a service offered by a business.
type ServiceConfig struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Price           float64 `yaml:"price"`
	Active          bool    `yaml:"active"`
}

// ProfessionalConfig is a staff member of a business.
type ProfessionalConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Specialty string `yaml:"specialty"`
	Active    bool   `yaml:"active"`
}

// BusinessConfig represents a single business in businesses.yaml.
type BusinessConfig struct {
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	Slug          string                `yaml:"slug"`
	Kind          string                `yaml:"kind"`
	Phone         string                `yaml:"phone"`
	Address       string                `yaml:"address"`
	WorkingHours  model.RawWorkingHours `yaml:"working_hours"`
	Services      []ServiceConfig       `yaml:"services"`
	Professionals []ProfessionalConfig  `yaml:"professionals"`
}

// HolidayConfig closes every business for a whole day.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"` // "Natal"
}

// BusinessesConfig is the root configuration for businesses.yaml.
type BusinessesConfig struct {
	Businesses []BusinessConfig `yaml:"businesses"`
	Holidays   []HolidayConfig  `yaml:"holidays"`
}

// LoadBusinessesConfig loads and validates businesses from a YAML file.
func LoadBusinessesConfig(path string) (*BusinessesConfig, error) {
	if path == "" {
		path = "configs/businesses.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read businesses config: %w", err)
	}

	return ParseBusinessesConfig(data)
}

// ParseBusinessesConfig decodes and validates businesses.yaml content.
func ParseBusinessesConfig(data []byte) (*BusinessesConfig, error) {
	var cfg BusinessesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse businesses config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate businesses config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *BusinessesConfig) Validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("no businesses defined")
	}

	ids := make(map[string]bool)
	slugs := make(map[string]bool)

	for i, b := range c.Businesses {
		if b.ID == "" {
			return fmt.Errorf("business[%d]: id is required", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("business[%d]: duplicate id '%s'", i, b.ID)
		}
		ids[b.ID] = true

		if err := model.ValidateBusinessName(b.Name); err != nil {
			return fmt.Errorf("business[%d]: %w", i, err)
		}
		if b.Slug != "" {
			if slugs[b.Slug] {
				return fmt.Errorf("business[%d]: duplicate slug '%s'", i, b.Slug)
			}
			slugs[b.Slug] = true
		}

		if err := validateWorkingHours(b.WorkingHours, fmt.Sprintf("business[%d].working_hours", i)); err != nil {
			return err
		}

		serviceIDs := make(map[string]bool)
		for j, s := range b.Services {
			if s.ID == "" || s.Name == "" {
				return fmt.Errorf("business[%d].services[%d]: id and name are required", i, j)
			}
			if serviceIDs[s.ID] {
				return fmt.Errorf("business[%d].services[%d]: duplicate id '%s'", i, j, s.ID)
			}
			serviceIDs[s.ID] = true
			if s.DurationMinutes <= 0 {
				return fmt.Errorf("business[%d].services[%d]: duration_minutes must be positive", i, j)
			}
			if s.Price < 0 {
				return fmt.Errorf("business[%d].services[%d]: price cannot be negative", i, j)
			}
		}

		profIDs := make(map[string]bool)
		for j, p := range b.Professionals {
			if p.ID == "" || p.Name == "" {
				return fmt.Errorf("business[%d].professionals[%d]: id and name are required", i, j)
			}
			if profIDs[p.ID] {
				return fmt.Errorf("business[%d].professionals[%d]: duplicate id '%s'", i, j, p.ID)
			}
			profIDs[p.ID] = true
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(model.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

// validateWorkingHours requires explicit shift lists; the legacy start/end
// shape is only accepted from stored data.
func validateWorkingHours(raw model.RawWorkingHours, prefix string) error {
	for key, day := range raw {
		if _, ok := model.ParseWeekdayKey(key); !ok {
			return fmt.Errorf("%s: unknown day '%s'", prefix, key)
		}
		if day.Active && day.Shifts == nil {
			return fmt.Errorf("%s.%s: active day must list shifts", prefix, key)
		}
		for j, s := range day.Shifts {
			if _, err := model.ParseTimeOfDay(s.Start); err != nil {
				return fmt.Errorf("%s.%s.shifts[%d].start: invalid format '%s', expected HH:MM", prefix, key, j, s.Start)
			}
			if _, err := model.ParseTimeOfDay(s.End); err != nil {
				return fmt.Errorf("%s.%s.shifts[%d].end: invalid format '%s', expected HH:MM", prefix, key, j, s.End)
			}
		}
	}
	if err := model.MigrateLegacyFormat(raw).Validate(); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

// Business converts the entry to the domain model.
func (b *BusinessConfig) Business() model.Business {
	return model.Business{
		ID:           b.ID,
		Name:         b.Name,
		Slug:         b.Slug,
		Kind:         b.Kind,
		Phone:        b.Phone,
		Address:      b.Address,
		WorkingHours: model.MigrateLegacyFormat(b.WorkingHours),
	}
}

// ServiceModels converts the configured services.
func (b *BusinessConfig) ServiceModels() []model.Service {
	out := make([]model.Service, 0, len(b.Services))
	for _, s := range b.Services {
		out = append(out, model.Service{
			ID:              s.ID,
			BusinessID:      b.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           s.Price,
			Active:          s.Active,
		})
	}
	return out
}

// ProfessionalModels converts the configured professionals.
func (b *BusinessConfig) ProfessionalModels() []model.Professional {
	out := make([]model.Professional, 0, len(b.Professionals))
	for _, p := range b.Professionals {
		out = append(out, model.Professional{
			ID:         p.ID,
			BusinessID: b.ID,
			Name:       p.Name,
			Specialty:  p.Specialty,
			Active:     p.Active,
		})
	}
	return out
}

// GetBusinessByID returns business config by ID.
func (c *BusinessesConfig) GetBusinessByID(id string) *BusinessConfig {
	for i := range c.Businesses {
		if c.Businesses[i].ID == id {
			return &c.Businesses[i]
		}
	}
	return nil
}

// HolidayDates returns the parsed holiday dates with their names.
func (c *BusinessesConfig) HolidayDates() map[time.Time]string {
	out := make(map[time.Time]string, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := model.ParseDate(h.Date)
		if err != nil {
			continue
		}
		out[d] = h.Name
	}
	return out
}

// String returns a summary of the configuration.
func (c *BusinessesConfig) String() string {
	services := 0
	for _, b := range c.Businesses {
		services += len(b.Services)
	}
	return fmt.Sprintf("BusinessesConfig: %d businesses, %d services, %d holidays",
		len(c.Businesses), services, len(c.Holidays))
}
