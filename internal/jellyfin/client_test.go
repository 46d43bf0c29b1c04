package jellyfin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"jellyhook/internal/config"
	"jellyhook/internal/jellyfin"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*jellyfin.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := jellyfin.NewClient(config.Jellyfin{
		URL:            server.URL,
		APIKey:         "token",
		UserID:         "user-1",
		RequestTimeout: 5,
	})
	return client, server
}

func TestUpdateItemSendsTokenAndBody(t *testing.T) {
	var gotToken string
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Items/abc" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotToken = r.Header.Get("X-Emby-Token")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateItem(context.Background(), "abc", map[string]any{"Genres": []string{"Stand-Up"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotToken != "token" {
		t.Fatalf("unexpected token: %q", gotToken)
	}
	if genres, ok := gotBody["Genres"].([]any); !ok || len(genres) != 1 || genres[0] != "Stand-Up" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestGetItemDecodesPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "user-1" {
			t.Errorf("missing userId query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Name":"Bobby Guy","ProductionYear":2023}`))
	})

	payload, err := client.GetItem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payload.Name() != "Bobby Guy" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestAddToPlaylistBuildsQuery(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.AddToPlaylist(context.Background(), "pl-9", "item-3"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if gotQuery != "ids=item-3&userId=user-1" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
}

func TestAddToPlaylistRequiresUser(t *testing.T) {
	client := jellyfin.NewClient(config.Jellyfin{URL: "http://x", RequestTimeout: 1})
	if err := client.AddToPlaylist(context.Background(), "pl", "item"); !errors.Is(err, jellyfin.ErrHTTP) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
}

func TestHTTPErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	err := client.UpdateItem(context.Background(), "abc", nil)
	if !errors.Is(err, jellyfin.ErrHTTP) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
}

func TestConnectionErrorClassification(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()
	err := client.UpdateItem(context.Background(), "abc", nil)
	if !errors.Is(err, jellyfin.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}
