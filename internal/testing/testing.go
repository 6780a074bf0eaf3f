// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
)

// MemoryStore is an in-memory [models.StateStore] that round-trips values through JSON like the SQLite store.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	sets   map[string]int
	GetErr error
	SetErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}, sets: map[string]int{}}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return false, m.GetErr
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets[key]++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Sets returns how many times key was written.
func (m *MemoryStore) Sets(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[key]
}

// Keys returns stored keys with the given prefix, sorted.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ReplaceCall records one ReplaceTracks invocation.
type ReplaceCall struct {
	PlaylistID string
	Tracks     []models.Track
}

// StubConnector is a scriptable test double for services.Connector.
//
// Playlists maps playlist IDs to their tracks. Catalog is searched by signature, falling back to
// Fallback when set.
type StubConnector struct {
	mu sync.Mutex

	ServiceType models.ServiceType
	Configured  bool
	Ready       bool
	Playlists   map[string][]models.Track
	Names       map[string]string
	Catalog     []models.Track
	Fallback    *models.Track

	ListErr    error
	ReplaceErr error
	SearchErr  error

	// Hook runs at the start of ReplaceTracks, before the stub records the call.
	Hook func(ctx context.Context)

	replaceCalls []ReplaceCall
	searchCalls  int
	listCalls    int
}

func NewStubConnector(service models.ServiceType) *StubConnector {
	return &StubConnector{
		ServiceType: service,
		Configured:  true,
		Ready:       true,
		Playlists:   map[string][]models.Track{},
		Names:       map[string]string{},
	}
}

func (s *StubConnector) Service() models.ServiceType { return s.ServiceType }

func (s *StubConnector) IsConfigured() bool { return s.Configured }

func (s *StubConnector) TokenReady(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Ready
}

// SetReady toggles token readiness.
func (s *StubConnector) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ready = ready
}

func (s *StubConnector) ListPlaylists(context.Context) ([]models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	ids := make([]string, 0, len(s.Playlists))
	for id := range s.Playlists {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	playlists := make([]models.Playlist, 0, len(ids))
	for _, id := range ids {
		name := s.Names[id]
		if name == "" {
			name = id
		}
		playlists = append(playlists, models.Playlist{ID: id, Name: name, Service: s.ServiceType, TrackCount: len(s.Playlists[id])})
	}
	return playlists, nil
}

func (s *StubConnector) ListTracks(_ context.Context, playlistID string) ([]models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	tracks, ok := s.Playlists[playlistID]
	if !ok {
		return nil, errors.New("playlist not found: " + playlistID)
	}
	return append([]models.Track(nil), tracks...), nil
}

// SetTracks replaces the stored tracks of playlistID.
func (s *StubConnector) SetTracks(playlistID string, tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Playlists[playlistID] = tracks
}

func (s *StubConnector) EnsurePlaylist(_ context.Context, name string) (*models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.Names {
		if n == name {
			return &models.Playlist{ID: id, Name: n, Service: s.ServiceType}, nil
		}
	}
	id := "created-" + name
	s.Names[id] = name
	s.Playlists[id] = []models.Track{}
	return &models.Playlist{ID: id, Name: name, Service: s.ServiceType}, nil
}

func (s *StubConnector) ReplaceTracks(ctx context.Context, playlistID string, tracks []models.Track) error {
	if s.Hook != nil {
		s.Hook(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls = append(s.replaceCalls, ReplaceCall{PlaylistID: playlistID, Tracks: append([]models.Track(nil), tracks...)})
	if s.ReplaceErr != nil {
		return s.ReplaceErr
	}
	s.Playlists[playlistID] = append([]models.Track(nil), tracks...)
	return nil
}

func (s *StubConnector) SearchTrack(_ context.Context, track models.Track) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	for _, c := range s.Catalog {
		if models.SameSong(c, track) {
			found := c
			return &found, nil
		}
	}
	return s.Fallback, nil
}

// ReplaceCalls returns a copy of the recorded ReplaceTracks calls.
func (s *StubConnector) ReplaceCalls() []ReplaceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReplaceCall(nil), s.replaceCalls...)
}

// SearchCalls returns how many searches ran.
func (s *StubConnector) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// ListCalls returns how many ListTracks calls ran.
func (s *StubConnector) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// NewTrack builds a track with a single artist.
func NewTrack(id, title, artist, album string) models.Track {
	return models.Track{ID: id, Title: title, Artists: []string{artist}, Album: album}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// NopBody wraps s as a response body.
func NopBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
