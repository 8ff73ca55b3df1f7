package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

type fakeTokens struct{}

func (fakeTokens) Issue(id domain.Identity) (string, error) {
	return "token-" + id.Key(), nil
}

type fakeDriverRepo struct {
	created []*domain.Driver
	err     error
}

func (f *fakeDriverRepo) Create(ctx context.Context, d *domain.Driver) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, d)
	return nil
}

func (f *fakeDriverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeDriverRepo) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	return nil
}

func (f *fakeDriverRepo) Release(ctx context.Context, id, lastRideID string, lat, lng float64) error {
	return nil
}

type fakePresence struct {
	last service.UpdateLocationRequest
	err  error
}

func (f *fakePresence) UpdateLocation(ctx context.Context, req service.UpdateLocationRequest) error {
	f.last = req
	return f.err
}

func (f *fakePresence) GoOnline(ctx context.Context, driverID string) (*domain.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Driver{ID: driverID, Status: domain.DriverStatusAvailable}, nil
}

func (f *fakePresence) GoOffline(ctx context.Context, driverID string) (*domain.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Driver{ID: driverID, Status: domain.DriverStatusOffline}, nil
}

func driverRoutes(h *DriverHandler) func(r gin.IRouter) {
	return func(r gin.IRouter) {
		r.POST("/drivers", h.Register)
		r.POST("/drivers/me/location", h.UpdateLocation)
		r.POST("/drivers/me/online", h.GoOnline)
		r.POST("/drivers/me/offline", h.GoOffline)
	}
}

func TestDriverRegister(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		body     map[string]string
		repoErr  error
		wantCode int
	}{
		{"valid", map[string]string{"name": "Ana", "phone": "+100", "vehicle_class": "suv"}, nil, http.StatusCreated},
		{"missing phone", map[string]string{"name": "Ana", "vehicle_class": "suv"}, nil, http.StatusBadRequest},
		{"unknown class", map[string]string{"name": "Ana", "phone": "+100", "vehicle_class": "rocket"}, nil, http.StatusBadRequest},
		{"duplicate phone", map[string]string{"name": "Ana", "phone": "+100", "vehicle_class": "suv"}, repository.ErrAlreadyExists, http.StatusConflict},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakeDriverRepo{err: tc.repoErr}
			r := newTestRouter(nil, driverRoutes(NewDriverHandler(&fakePresence{}, repo, fakeTokens{})))

			w := doJSON(t, r, http.MethodPost, "/drivers", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantCode != http.StatusCreated {
				return
			}

			var resp DriverResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(domain.DriverStatusOffline) {
				t.Errorf("expected new driver offline, got %s", resp.Status)
			}
			if resp.Token != "token-driver:"+resp.ID {
				t.Errorf("expected driver token, got %q", resp.Token)
			}
			if len(repo.created) != 1 {
				t.Errorf("expected one driver stored, got %d", len(repo.created))
			}
		})
	}
}

func TestDriverUpdateLocation(t *testing.T) {
	t.Parallel()
	presence := &fakePresence{}
	driver := domain.Identity{UserID: "d1", Role: domain.RoleDriver}
	r := newTestRouter(&driver, driverRoutes(NewDriverHandler(presence, &fakeDriverRepo{}, fakeTokens{})))

	w := doJSON(t, r, http.MethodPost, "/drivers/me/location", map[string]any{"lat": 0, "lng": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if presence.last.DriverID != "d1" || presence.last.Lat != 0 || presence.last.Lng != 0 {
		t.Errorf("unexpected request %+v", presence.last)
	}

	w = doJSON(t, r, http.MethodPost, "/drivers/me/location", map[string]any{"lat": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without lng, got %d", w.Code)
	}
}

func TestDriverPresenceErrors(t *testing.T) {
	t.Parallel()
	presence := &fakePresence{err: service.ErrDriverOnRide}
	driver := domain.Identity{UserID: "d1", Role: domain.RoleDriver}
	r := newTestRouter(&driver, driverRoutes(NewDriverHandler(presence, &fakeDriverRepo{}, fakeTokens{})))

	for _, path := range []string{"/drivers/me/online", "/drivers/me/offline"} {
		w := doJSON(t, r, http.MethodPost, path, nil)
		if w.Code != http.StatusConflict {
			t.Errorf("%s: expected 409, got %d", path, w.Code)
		}
	}
}
