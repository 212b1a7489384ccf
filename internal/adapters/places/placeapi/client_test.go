package placeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pet-skin-triage/internal/ports/places"
)

func TestNearbySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/places/nearby" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "37.5665" || q.Get("lng") != "126.978" {
			t.Errorf("center = %s,%s", q.Get("lat"), q.Get("lng"))
		}
		if q.Get("radius") != "5000" {
			t.Errorf("radius = %s", q.Get("radius"))
		}
		if q.Get("category") != "veterinary_care" {
			t.Errorf("category = %s", q.Get("category"))
		}
		if r.Header.Get("X-Api-Key") != "pk-test" {
			t.Errorf("api key = %s", r.Header.Get("X-Api-Key"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places":[
			{"id":"p1","name":"Vet One","lat":37.56,"lng":126.97},
			{"id":"p2","name":"Vet Two","lat":37.57,"lng":126.98}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "pk-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	refs, err := c.NearbySearch(context.Background(), places.LatLng{Lat: 37.5665, Lng: 126.978}, 5000, "veterinary_care")
	if err != nil {
		t.Fatalf("nearby search: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs", len(refs))
	}
	if refs[0].ID != "p1" || refs[0].Name != "Vet One" {
		t.Fatalf("first ref = %+v", refs[0])
	}
}

func TestNearbySearch_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL})
	refs, err := c.NearbySearch(context.Background(), places.LatLng{}, 5000, "veterinary_care")
	if err != nil {
		t.Fatalf("nearby search: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %d", len(refs))
	}
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/places/p1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fields"); got != "name,address,phone" {
			t.Errorf("fields = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Vet One","address":"12 Sejong-daero","phone":"02-555-0100","rating":4.6,"review_count":120,"open_now":true,"hours":["mon 9-18"]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL})
	d, err := c.Details(context.Background(), places.PlaceRef{ID: "p1"}, []string{"name", "address", "phone"})
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.Address != "12 Sejong-daero" || d.Phone != "02-555-0100" {
		t.Fatalf("details = %+v", d)
	}
	if d.Rating != 4.6 || d.ReviewCount != 120 || !d.OpenNow {
		t.Fatalf("details = %+v", d)
	}
}

func TestDetails_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Details(context.Background(), places.PlaceRef{ID: "ghost"}, nil); !errors.Is(err, places.ErrNotFound) {
		t.Fatalf("expected places.ErrNotFound, got %v", err)
	}
}

func TestDetails_EmptyID(t *testing.T) {
	c, _ := NewClient(Config{BaseURL: "http://localhost:0"})
	if _, err := c.Details(context.Background(), places.PlaceRef{}, nil); !errors.Is(err, places.ErrNotFound) {
		t.Fatalf("expected places.ErrNotFound, got %v", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
