package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

type mockServiceRepo struct {
	services map[uuid.UUID]*Service
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{services: make(map[uuid.UUID]*Service)}
}

func (m *mockServiceRepo) Create(ctx context.Context, s *Service) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Sessions {
		if s.Sessions[i].ID == uuid.Nil {
			s.Sessions[i].ID = uuid.New()
		}
		s.Sessions[i].ServiceID = s.ID
	}
	m.services[s.ID] = s
	return nil
}

func (m *mockServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *mockServiceRepo) Update(ctx context.Context, s *Service) error {
	if _, ok := m.services[s.ID]; !ok {
		return fmt.Errorf("service %s: %w", s.ID, ErrNotFound)
	}
	m.services[s.ID] = s
	return nil
}

func (m *mockServiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.services, id)
	return nil
}

func (m *mockServiceRepo) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	var out []*Service
	for _, s := range m.services {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateService_Valid(t *testing.T) {
	repo := newMockServiceRepo()
	mgr := NewManager(repo)

	s := &Service{
		Name:            "Physiotherapy Course",
		DurationMinutes: 30,
		Active:          true,
		Sessions: []Session{
			{Position: 1, Name: strPtr("Assessment"), DurationMinutes: intPtr(45)},
			{Position: 2, Name: strPtr("Treatment")},
			{Position: 3},
		},
	}
	if err := mgr.CreateService(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Fatal("expected id assigned")
	}

	got, err := repo.GetByID(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("service not persisted: %v", err)
	}
	if len(got.Sessions) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(got.Sessions))
	}
}

func TestCreateService_Invalid(t *testing.T) {
	mgr := NewManager(newMockServiceRepo())

	cases := []struct {
		name     string
		svc      Service
		wantKind engine.Kind
	}{
		{
			name: "missing name",
			svc:  Service{DurationMinutes: 30},
		},
		{
			name: "non-positive duration",
			svc:  Service{Name: "Consult", DurationMinutes: 0},
		},
		{
			name: "non-positive session duration",
			svc: Service{Name: "Consult", DurationMinutes: 30, Sessions: []Session{
				{Position: 1, DurationMinutes: intPtr(0)},
			}},
		},
		{
			name: "blank session name",
			svc: Service{Name: "Consult", DurationMinutes: 30, Sessions: []Session{
				{Position: 1, Name: strPtr("   ")},
			}},
			wantKind: engine.KindInvalidSessionStructure,
		},
		{
			name: "duplicate session positions",
			svc: Service{Name: "Consult", DurationMinutes: 30, Sessions: []Session{
				{Position: 1},
				{Position: 1},
			}},
			wantKind: engine.KindInvalidSessionStructure,
		},
		{
			name: "session position below one",
			svc: Service{Name: "Consult", DurationMinutes: 30, Sessions: []Session{
				{Position: 0},
			}},
			wantKind: engine.KindInvalidSessionStructure,
		},
	}

	for _, tc := range cases {
		svc := tc.svc
		err := mgr.CreateService(context.Background(), &svc)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
			continue
		}
		if tc.wantKind != "" && !engine.IsKind(err, tc.wantKind) {
			t.Errorf("%s: expected kind %s, got %v", tc.name, tc.wantKind, err)
		}
	}
}

func TestEngineService(t *testing.T) {
	repo := newMockServiceRepo()
	mgr := NewManager(repo)

	active := &Service{
		Name:            "Dental Cleaning",
		DurationMinutes: 40,
		Active:          true,
		Sessions: []Session{
			{Position: 1, DurationMinutes: intPtr(60)},
			{Position: 2},
		},
	}
	if err := mgr.CreateService(context.Background(), active); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	es, ok, err := mgr.EngineService(context.Background(), active.ID)
	if err != nil || !ok {
		t.Fatalf("expected engine service, got ok=%v err=%v", ok, err)
	}
	if es.Minutes != 40 || len(es.Sessions) != 2 {
		t.Errorf("unexpected engine service: %+v", es)
	}
	if es.DurationFor(es.Sessions[0].ID) != 60 {
		t.Errorf("expected session duration 60, got %d", es.DurationFor(es.Sessions[0].ID))
	}
	if es.DurationFor(es.Sessions[1].ID) != 40 {
		t.Errorf("expected service default 40, got %d", es.DurationFor(es.Sessions[1].ID))
	}

	inactive := &Service{Name: "Retired", DurationMinutes: 20}
	if err := mgr.CreateService(context.Background(), inactive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := mgr.EngineService(context.Background(), inactive.ID); err != nil || ok {
		t.Errorf("expected inactive service to be unavailable, got ok=%v err=%v", ok, err)
	}
}

func TestEngineService_Unknown(t *testing.T) {
	mgr := NewManager(newMockServiceRepo())

	// An unknown id is unavailable, not an error; the lookup itself
	// succeeded.
	if _, ok, err := mgr.EngineService(context.Background(), uuid.New()); err != nil || ok {
		t.Errorf("expected ok=false err=nil for unknown service, got ok=%v err=%v", ok, err)
	}
}

func TestGetService_Unknown(t *testing.T) {
	mgr := NewManager(newMockServiceRepo())

	_, err := mgr.GetService(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
