package mosapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/parkfinder/internal/adapters/mosapi"
	"github.com/samirrijal/parkfinder/internal/core/domain"
)

func TestClient_ListAll_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/mos_parking/parking" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"parkings": [{"_id": "a"}, {"_id": "b"}, null]}`))
	}))
	defer srv.Close()

	c := mosapi.NewClient(srv.URL+"/", nil, time.Second)
	records, err := c.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 raw records (malformed ones are left to the normaliser), got %d", len(records))
	}
}

func TestClient_ListNear_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v1/mos_parking/parking/near" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q.Get("lat") != "55.75" || q.Get("lng") != "37.62" || q.Get("limit") != "5" || q.Get("radius") != "200" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id": "x", "lat": 55.75, "long": 37.62, "distance": 12}]`))
	}))
	defer srv.Close()

	c := mosapi.NewClient(srv.URL, nil, time.Second)
	records, err := c.ListNear(context.Background(), domain.GeoPoint{Lat: 55.75, Lng: 37.62}, 5, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestClient_SearchByText_EncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Тверская 7&x" {
			t.Errorf("unexpected q %q", got)
		}
		_, _ = w.Write([]byte(`{"parkings": null}`))
	}))
	defer srv.Close()

	c := mosapi.NewClient(srv.URL, nil, time.Second)
	records, err := c.SearchByText(context.Background(), "Тверская 7&x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestClient_StatusClasses(t *testing.T) {
	tests := []struct {
		code int
		want domain.StatusClass
	}{
		{http.StatusNotFound, domain.StatusNotFound},
		{http.StatusInternalServerError, domain.StatusServerError},
		{http.StatusBadGateway, domain.StatusServerError},
		{http.StatusBadRequest, domain.StatusServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			_, err := mosapi.NewClient(srv.URL, nil, time.Second).ListAll(context.Background())
			var te *domain.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if te.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, te.Status)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := mosapi.NewClient(url, nil, time.Second).ListAll(context.Background())
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != domain.StatusNetworkError {
		t.Errorf("expected network_error, got %v", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := mosapi.NewClient(srv.URL, nil, 5*time.Second).ListNear(ctx, domain.GeoPoint{Lat: 1, Lng: 1}, 5, 200)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation to surface, got %v", err)
	}
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	_, err := mosapi.NewClient(srv.URL, nil, time.Second).ListAll(context.Background())
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != domain.StatusServerError {
		t.Errorf("expected server_error for an unrecognised body, got %v", err)
	}
}
