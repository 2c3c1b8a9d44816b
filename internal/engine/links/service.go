package links

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("link not found")

// CacheInvalidator is the write-side hook into the fast lookup cache. Every
// mutation invalidates the slug so the edge picks up new rules on next read.
type CacheInvalidator interface {
	Invalidate(slug string)
}

// SlugRegistrar receives newly created slugs (the bloom filter).
type SlugRegistrar interface {
	Add(slug string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

type noopRegistrar struct{}

func (noopRegistrar) Add(string) {}

type Service struct {
	repo      *Repository
	cache     CacheInvalidator
	registrar SlugRegistrar
}

func NewService(repo *Repository, cache CacheInvalidator, registrar SlugRegistrar) *Service {
	if cache == nil {
		cache = noopInvalidator{}
	}
	if registrar == nil {
		registrar = noopRegistrar{}
	}
	return &Service{repo: repo, cache: cache, registrar: registrar}
}

type CreateRequest struct {
	DestinationURL string
	CustomSlug     string
	Title          string
	CreatedBy      string
	RedirectType   string
	ExpiresAt      *int64
	MaxClicks      *int64
	Password       string
}

func (s *Service) CreateLink(req *CreateRequest) (*Link, error) {
	slug, err := GenerateSlug(req.CustomSlug, s.repo)
	if err != nil {
		return nil, err
	}

	var passwordHash string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	now := time.Now().Unix()
	link := &Link{
		ID:             uuid.New().String(),
		Slug:           slug,
		DestinationURL: req.DestinationURL,
		Title:          req.Title,
		CreatedBy:      req.CreatedBy,
		RedirectType:   req.RedirectType,
		Status:         StatusActive,
		ExpiresAt:      req.ExpiresAt,
		MaxClicks:      req.MaxClicks,
		PasswordHash:   passwordHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if link.RedirectType == "" {
		link.RedirectType = "temporary"
	}

	if err := ValidateLink(link); err != nil {
		return nil, err
	}

	if err := s.repo.Create(link); err != nil {
		return nil, err
	}

	s.registrar.Add(slug)
	return link, nil
}

func (s *Service) GetLink(slug string) (*Link, error) {
	link, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, ErrNotFound
	}
	return link, nil
}

type UpdateRequest struct {
	DestinationURL string
	Title          string
	RedirectType   string
	Status         string
	ExpiresAt      *int64
	MaxClicks      *int64
}

func (s *Service) UpdateLink(slug string, updates *UpdateRequest) (*Link, error) {
	existing, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, ErrNotFound
	}

	if updates.DestinationURL != "" {
		existing.DestinationURL = updates.DestinationURL
	}
	if updates.Title != "" {
		existing.Title = updates.Title
	}
	if updates.RedirectType != "" {
		existing.RedirectType = updates.RedirectType
	}
	if updates.Status != "" {
		existing.Status = updates.Status
	}
	if updates.ExpiresAt != nil {
		existing.ExpiresAt = updates.ExpiresAt
	}
	if updates.MaxClicks != nil {
		existing.MaxClicks = updates.MaxClicks
	}

	if err := ValidateLink(existing); err != nil {
		return nil, err
	}

	if err := s.repo.Update(existing); err != nil {
		return nil, err
	}

	s.cache.Invalidate(slug)
	return existing, nil
}

func (s *Service) ArchiveLink(slug string) error {
	link, err := s.repo.GetBySlug(slug)
	if err != nil {
		return ErrNotFound
	}
	if err := s.repo.Archive(link.ID); err != nil {
		return err
	}
	s.cache.Invalidate(slug)
	return nil
}

func (s *Service) ListLinks(limit, offset int) ([]*Link, error) {
	return s.repo.List(limit, offset)
}

// Routing configuration. Each setter replaces one rule set wholesale and
// invalidates the cached snapshot; the other rule sets are untouched.

func (s *Service) SetDeviceRouting(slug string, routes map[string]string) (*Link, error) {
	return s.mutateRules(slug, func(r *RoutingRules) { r.Device = routes })
}

func (s *Service) SetGeoRouting(slug string, routes map[string]string) (*Link, error) {
	return s.mutateRules(slug, func(r *RoutingRules) { r.Geo = routes })
}

func (s *Service) SetReferrerRouting(slug string, rules []ReferrerRule) (*Link, error) {
	return s.mutateRules(slug, func(r *RoutingRules) { r.Referrer = rules })
}

func (s *Service) SetTimeRouting(slug string, rules []TimeRule) (*Link, error) {
	return s.mutateRules(slug, func(r *RoutingRules) { r.Time = rules })
}

func (s *Service) DeleteRouting(slug, kind string) (*Link, error) {
	switch kind {
	case "device", "geo", "referrer", "time":
	default:
		return nil, fmt.Errorf("unknown routing kind %q", kind)
	}
	return s.mutateRules(slug, func(r *RoutingRules) {
		switch kind {
		case "device":
			r.Device = nil
		case "geo":
			r.Geo = nil
		case "referrer":
			r.Referrer = nil
		case "time":
			r.Time = nil
		}
	})
}

func (s *Service) SetABTest(slug string, test *ABTest) (*Link, error) {
	if test != nil {
		if test.Split == 0 {
			test.Split = 50
		}
		if test.Status == "" {
			test.Status = ABStatusActive
		}
	}
	return s.mutateRules(slug, func(r *RoutingRules) { r.ABTest = test })
}

func (s *Service) DeleteABTest(slug string) (*Link, error) {
	return s.mutateRules(slug, func(r *RoutingRules) { r.ABTest = nil })
}

func (s *Service) mutateRules(slug string, mutate func(*RoutingRules)) (*Link, error) {
	link, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, ErrNotFound
	}

	if link.Rules == nil {
		link.Rules = &RoutingRules{}
	}
	mutate(link.Rules)

	if err := ValidateRules(link.Rules); err != nil {
		return nil, err
	}

	if emptyRules(link.Rules) {
		link.Rules = nil
	}

	if err := s.repo.Update(link); err != nil {
		return nil, err
	}

	s.cache.Invalidate(slug)
	return link, nil
}

func emptyRules(r *RoutingRules) bool {
	return len(r.Device) == 0 && len(r.Geo) == 0 && len(r.Referrer) == 0 &&
		len(r.Time) == 0 && r.ABTest == nil
}
