package testsupport

import (
	"context"
	"fmt"
	"sync"

	"jellyhook/internal/event"
)

// ItemUpdate records one UpdateItem call observed by a FakeServer.
type ItemUpdate struct {
	ItemID string
	Fields map[string]any
}

// PlaylistAdd records one AddToPlaylist call observed by a FakeServer.
type PlaylistAdd struct {
	PlaylistID string
	ItemID     string
}

// FakeServer implements the media server interface for tests.
type FakeServer struct {
	mu       sync.Mutex
	Items    map[string]event.Payload
	GetErr   error
	WriteErr error
	updates  []ItemUpdate
	adds     []PlaylistAdd
}

// GetItem serves items from the Items map.
func (s *FakeServer) GetItem(_ context.Context, itemID string) (event.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	item, ok := s.Items[itemID]
	if !ok {
		return nil, fmt.Errorf("no such item %q", itemID)
	}
	return item, nil
}

// UpdateItem records the write.
func (s *FakeServer) UpdateItem(_ context.Context, itemID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.updates = append(s.updates, ItemUpdate{ItemID: itemID, Fields: fields})
	return nil
}

// AddToPlaylist records the addition.
func (s *FakeServer) AddToPlaylist(_ context.Context, playlistID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.adds = append(s.adds, PlaylistAdd{PlaylistID: playlistID, ItemID: itemID})
	return nil
}

// Updates returns the recorded item writes.
func (s *FakeServer) Updates() []ItemUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ItemUpdate(nil), s.updates...)
}

// Adds returns the recorded playlist additions.
func (s *FakeServer) Adds() []PlaylistAdd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlaylistAdd(nil), s.adds...)
}
