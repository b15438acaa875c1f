package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{BaseURL: srv.URL, Token: "test-token"})
}

func TestQuerySendsFormulaAndAuth(t *testing.T) {
	var gotFormula, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec1"}}})
	})

	page, err := client.Query(context.Background(), "families", "{active} = TRUE()", "")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].ID != "rec1" {
		t.Errorf("got records %+v, want one record rec1", page.Records)
	}
	if gotFormula != "{active} = TRUE()" {
		t.Errorf("formula = %q, want %q", gotFormula, "{active} = TRUE()")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q, want bearer token", gotAuth)
	}
}

func TestQueryPassesPageToken(t *testing.T) {
	var gotOffset string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset")
		json.NewEncoder(w).Encode(Page{})
	})

	if _, err := client.Query(context.Background(), "families", "", "tok2"); err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if gotOffset != "tok2" {
		t.Errorf("offset = %q, want tok2", gotOffset)
	}
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec1"}}})
	})

	page, err := client.Query(context.Background(), "families", "", "")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(page.Records) != 1 {
		t.Errorf("got %d records, want 1", len(page.Records))
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server saw %d calls, want 2", n)
	}
}

func TestGetNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Get(context.Background(), "bookings", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("bad formula"))
	})

	_, err := client.Query(context.Background(), "families", "", "")
	if err == nil {
		t.Fatal("Query() succeeded, want error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, want 1", n)
	}
}

func TestCreateWrapsFields(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Record{ID: "rec9", Fields: map[string]any{"district": "north"}})
	})

	rec, err := client.Create(context.Background(), "bookings", map[string]any{"district": "north"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if rec.ID != "rec9" {
		t.Errorf("created id = %q, want rec9", rec.ID)
	}
	fields, ok := gotBody["fields"].(map[string]any)
	if !ok || fields["district"] != "north" {
		t.Errorf("request body = %v, want fields wrapper with district", gotBody)
	}
}

func TestQueryAllDrainsPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "a"}}, NextToken: "more"})
			return
		}
		json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "b"}}})
	})

	recs, err := QueryAll(context.Background(), client, "families", "")
	if err != nil {
		t.Fatalf("QueryAll() error: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "a" || recs[1].ID != "b" {
		t.Errorf("got %+v, want records a then b", recs)
	}
}
