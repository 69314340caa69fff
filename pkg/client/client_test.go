package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:3647", "")
	if c.BaseURL != "http://localhost:3647" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:3647", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ok, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error from 503")
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("X-API-Key: %q", r.Header.Get("X-API-Key"))
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/turn" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"hi","action":"discovery","phase":"discovery","ticket":{"id":"TKT-1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	out, err := c.Turn(context.Background(), "ana@example.com", "", "hello")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Reply != "hi" || out.Action != "discovery" {
		t.Errorf("Turn: %+v", out)
	}
	if out.Ticket == nil || out.Ticket.ID != "TKT-1" {
		t.Errorf("Turn ticket: %+v", out.Ticket)
	}
}

func TestQueue_buildsFilterQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engineer") != "Juan" || q.Get("mode") != "mine" {
			t.Errorf("query: %v", q)
		}
		_, _ = w.Write([]byte(`{"items":[],"meta":{"total":0,"overdue":0,"pending":0}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	out, err := c.Queue(context.Background(), QueueFilter{Engineer: "Juan", Mode: "mine"})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if out.Meta.Total != 0 {
		t.Errorf("Queue: %+v", out)
	}
}

func TestProjectStatus_escapesPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/pet_shop/status" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"project_id":"pet_shop","status":"developing","progress":60}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ps, err := c.ProjectStatus(context.Background(), "pet_shop")
	if err != nil {
		t.Fatalf("ProjectStatus: %v", err)
	}
	if ps.Progress != 60 {
		t.Errorf("ProjectStatus: %+v", ps)
	}
}
