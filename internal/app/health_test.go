package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"investlocal/api/internal/store"
)

func TestHealth(t *testing.T) {
	handler := newTestHandler(&fakeStore{})
	recorder, body := doRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	if recorder.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("expected healthy response, got %d %v", recorder.Code, body)
	}
}

func TestReady(t *testing.T) {
	handler := newTestHandler(&fakeStore{})
	recorder, body := doRequest(t, handler, http.MethodGet, "/api/ready", "", nil)
	if recorder.Code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("expected ready, got %d %v", recorder.Code, body)
	}
}

func TestReadyDatabaseDown(t *testing.T) {
	fs := &fakeStore{
		ping: func(context.Context) error { return errors.New("connection refused") },
	}
	handler := newTestHandler(fs)
	recorder, body := doRequest(t, handler, http.MethodGet, "/api/ready", "", nil)
	if recorder.Code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Fatalf("expected 503 not_ready, got %d %v", recorder.Code, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	user := activeUser("usr_zed", "Zed", "investor")
	fs := &fakeStore{
		getUserByID: func(context.Context, string) (store.User, error) { return user, nil },
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, user.ID)

	recorder, body := doRequest(t, handler, http.MethodGet, "/api/nope", token, nil)
	if recorder.Code != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %v", recorder.Code, body)
	}
}
