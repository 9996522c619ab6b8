// Package memstore is an in-process record store with the same uniqueness
// rules as the SQL stores. It backs the "memory" database driver and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agendafacil/internal/model"
)

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	holding       map[model.Status]bool
	businesses    map[string]*model.Business
	services      map[string]*model.Service
	professionals map[string]*model.Professional
	blocks        map[string]*model.Block
	bookings      map[string]*model.Booking
}

// New creates a store whose unique slot index covers the given statuses.
func New(holding []model.Status) *Store {
	h := make(map[model.Status]bool, len(holding))
	for _, st := range holding {
		h[st] = true
	}
	return &Store{
		holding:       h,
		businesses:    make(map[string]*model.Business),
		services:      make(map[string]*model.Service),
		professionals: make(map[string]*model.Professional),
		blocks:        make(map[string]*model.Block),
		bookings:      make(map[string]*model.Booking),
	}
}

func key(businessID, id string) string { return businessID + "/" + id }

// slotKey mirrors the SQL partial unique indexes.
func slotKey(b *model.Booking) string {
	if b.ProfessionalID != "" {
		return fmt.Sprintf("p|%s|%s|%s|%s", b.BusinessID, b.ProfessionalID, model.FormatDate(b.Date), b.Time.StorageString())
	}
	return fmt.Sprintf("s|%s|%s|%s|%s", b.BusinessID, b.ServiceID, model.FormatDate(b.Date), b.Time.StorageString())
}

func (s *Store) slotTaken(b *model.Booking, status model.Status) bool {
	if !s.holding[status] {
		return false
	}
	k := slotKey(b)
	for _, other := range s.bookings {
		if other.ID != b.ID && s.holding[other.Status] && slotKey(other) == k {
			return true
		}
	}
	return false
}

func (s *Store) UpsertBusiness(_ context.Context, b *model.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.businesses[b.ID] = &cp
	return nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (*model.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) GetWorkingHours(_ context.Context, businessID string) (model.RawWorkingHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if b.WorkingHours == nil {
		return nil, nil
	}
	return b.WorkingHours.Raw(), nil
}

func (s *Store) SaveWorkingHours(_ context.Context, businessID string, wh model.WorkingHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return model.ErrNotFound
	}
	b.WorkingHours = wh
	return nil
}

func (s *Store) UpsertService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *svc
	s.services[key(svc.BusinessID, svc.ID)] = &cp
	return nil
}

func (s *Store) GetService(_ context.Context, businessID, serviceID string) (*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[key(businessID, serviceID)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *Store) UpsertProfessional(_ context.Context, p *model.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.professionals[key(p.BusinessID, p.ID)] = &cp
	return nil
}

func (s *Store) GetProfessional(_ context.Context, businessID, professionalID string) (*model.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.professionals[key(businessID, professionalID)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetBlocks(ctx context.Context, businessID string, date time.Time) ([]model.Block, error) {
	return s.ListBlocks(ctx, businessID, date, date)
}

func (s *Store) ListBlocks(_ context.Context, businessID string, from, to time.Time) ([]model.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Block{}
	for _, b := range s.blocks {
		if b.BusinessID == businessID && inRange(b.Date, from, to) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *Store) GetBlock(_ context.Context, businessID, id string) (*model.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok || b.BusinessID != businessID {
		return nil, model.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) CreateBlock(_ context.Context, b *model.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blocks[b.ID]; exists {
		return fmt.Errorf("block %s already exists", b.ID)
	}
	cp := *b
	s.blocks[b.ID] = &cp
	return nil
}

func (s *Store) UpsertBlock(_ context.Context, b *model.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.blocks[b.ID] = &cp
	return nil
}

func (s *Store) UpdateBlock(_ context.Context, b *model.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.blocks[b.ID]
	if !ok || cur.BusinessID != b.BusinessID {
		return model.ErrNotFound
	}
	cp := *b
	cp.CreatedAt = cur.CreatedAt
	s.blocks[b.ID] = &cp
	return nil
}

func (s *Store) DeleteBlock(_ context.Context, businessID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok || b.BusinessID != businessID {
		return model.ErrNotFound
	}
	delete(s.blocks, id)
	return nil
}

func (s *Store) GetBookings(_ context.Context, businessID string, date time.Time, professionalID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.BusinessID != businessID || !model.SameDate(b.Date, date) {
			continue
		}
		if professionalID != "" && b.ProfessionalID != professionalID {
			continue
		}
		out = append(out, *b)
	}
	sortBookings(out)
	return out, nil
}

func (s *Store) ListBookings(_ context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.BusinessID == businessID && inRange(b.Date, from, to) {
			out = append(out, *b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *Store) CountBookingsByDate(_ context.Context, businessID string, from, to time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, b := range s.bookings {
		if b.BusinessID != businessID || !inRange(b.Date, from, to) {
			continue
		}
		if b.Status == model.StatusPending || b.Status == model.StatusConfirmed {
			counts[model.FormatDate(b.Date)]++
		}
	}
	return counts, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) InsertBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if s.slotTaken(b, b.Status) {
		return model.ErrSlotConflict
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, from, to model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.ErrNotFound
	}
	if b.Status != from {
		return model.ErrConcurrentModification
	}
	if s.slotTaken(b, to) {
		return model.ErrSlotConflict
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return nil
}

func inRange(d, from, to time.Time) bool {
	day := model.DateOnly(d)
	return !day.Before(model.DateOnly(from)) && !day.After(model.DateOnly(to))
}

func sortBookings(out []model.Booking) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
}
