package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveTopMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "1 Dr Carlton B Goodlett Pl, San Francisco" {
			t.Errorf("unexpected q param %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "jsonv2" {
			t.Errorf("unexpected format param %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "treeradius" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"37.7793","lon":"-122.4193","display_name":"City Hall"}]`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	coord, err := client.Resolve(context.Background(), "1 Dr Carlton B Goodlett Pl, San Francisco")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coord.Lat != 37.7793 || coord.Lon != -122.4193 {
		t.Fatalf("unexpected coordinate %+v", coord)
	}
}

func TestResolveNoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.Resolve(context.Background(), "nowhere at all")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}

func TestResolveEmptyAddressSkipsNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.Resolve(context.Background(), "   ")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if called {
		t.Fatal("expected no request for an empty address")
	}
}

func TestResolveServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bandwidth limit exceeded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.Resolve(context.Background(), "somewhere")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}

func TestResolveMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.Resolve(context.Background(), "somewhere")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}

func TestResolveOutOfRangeCoordinate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"91.5","lon":"0","display_name":"bogus"}]`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.Resolve(context.Background(), "somewhere")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}
