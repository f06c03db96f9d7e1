package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLookup_Success(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"status":"success","lat":48.2082,"lon":16.3738}`))
	}))
	defer srv.Close()

	l := NewLocator(srv.URL)
	loc, err := l.Lookup(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if loc.Latitude != 48.2082 || loc.Longitude != 16.3738 {
		t.Fatalf("location = %+v", loc)
	}
	if gotPath != "/json/203.0.113.7" {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "fields=") {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestLookup_FailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	l := NewLocator(srv.URL)
	if _, err := l.Lookup(context.Background(), "10.0.0.1"); err == nil {
		t.Fatalf("expected error on fail status")
	} else if !strings.Contains(err.Error(), "private range") {
		t.Fatalf("err = %v", err)
	}
}

func TestLookup_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := NewLocator(srv.URL)
	if _, err := l.Lookup(context.Background(), "203.0.113.7"); err == nil {
		t.Fatalf("expected error on 503")
	}
}
