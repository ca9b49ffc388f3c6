package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// DefaultFileName is the state file name inside a state directory.
const DefaultFileName = "devices.json"

// ErrUnsupportedVersion indicates a state file written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// DeviceState contains every device the tools have provisioned.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Devices is ordered by device ID.
	Devices []DeviceRecord `json:"devices,omitempty"`
}

// DeviceRecord is what is known about one device.
type DeviceRecord struct {
	// DeviceID is the lower-cased identifier reported by device-id.
	DeviceID string `json:"device_id"`

	// Claimed is the claim flag last reported by the device.
	Claimed bool `json:"claimed"`

	// ClaimCodeSet records that a claim code was stored on the device.
	ClaimCodeSet bool `json:"claim_code_set,omitempty"`

	// PublicKeyPEM is the device public key.
	PublicKeyPEM string `json:"public_key_pem,omitempty"`

	// Networks lists the networks configured on the device, by slot.
	Networks []NetworkRecord `json:"networks,omitempty"`

	// FirstSeenAt is when the device was first recorded.
	FirstSeenAt time.Time `json:"first_seen_at"`

	// LastSeenAt is when the device was last updated.
	LastSeenAt time.Time `json:"last_seen_at"`
}

// NetworkRecord describes a configured network without its credentials.
type NetworkRecord struct {
	Index        int       `json:"index"`
	SSID         string    `json:"ssid"`
	Security     uint32    `json:"security"`
	ConfiguredAt time.Time `json:"configured_at"`
}

// Device returns the record for id, or nil.
func (s *DeviceState) Device(id string) *DeviceRecord {
	id = strings.ToLower(id)
	for i := range s.Devices {
		if s.Devices[i].DeviceID == id {
			return &s.Devices[i]
		}
	}
	return nil
}

// SetNetwork records a network in its slot, replacing any previous entry.
func (r *DeviceRecord) SetNetwork(n NetworkRecord) {
	for i := range r.Networks {
		if r.Networks[i].Index == n.Index {
			r.Networks[i] = n
			return
		}
	}
	r.Networks = append(r.Networks, n)
	sort.Slice(r.Networks, func(i, j int) bool { return r.Networks[i].Index < r.Networks[j].Index })
}

// DeviceStore manages persistence of device state to a JSON file.
type DeviceStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewDeviceStore creates a store backed by the file at path.
func NewDeviceStore(path string) *DeviceStore {
	return &DeviceStore{path: path, now: time.Now}
}

// NewDeviceStoreInDir creates a store using DefaultFileName inside dir.
func NewDeviceStoreInDir(dir string) *DeviceStore {
	return NewDeviceStore(filepath.Join(dir, DefaultFileName))
}

// Path returns the state file path.
func (s *DeviceStore) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *DeviceStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *DeviceStore) save(state *DeviceState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = s.now()
	sort.Slice(state.Devices, func(i, j int) bool {
		return state.Devices[i].DeviceID < state.Devices[j].DeviceID
	})

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Load reads the state from disk. A missing file yields an empty state.
func (s *DeviceStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *DeviceStore) load() (*DeviceState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &DeviceState{Version: StateVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}
	return state, nil
}

// Update loads the record for id (creating it if needed), applies fn and
// saves the result.
func (s *DeviceStore) Update(id string, fn func(*DeviceRecord)) (*DeviceRecord, error) {
	if id == "" {
		return nil, errors.New("device ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := state.Device(id)
	if rec == nil {
		state.Devices = append(state.Devices, DeviceRecord{
			DeviceID:    strings.ToLower(id),
			FirstSeenAt: now,
		})
		rec = &state.Devices[len(state.Devices)-1]
	}
	fn(rec)
	rec.LastSeenAt = now
	result := *rec

	if err := s.save(state); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns the record for id, or nil if the device is unknown.
func (s *DeviceStore) Get(id string) (*DeviceRecord, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	rec := state.Device(id)
	if rec == nil {
		return nil, nil
	}
	result := *rec
	return &result, nil
}

// Remove deletes the record for id. It reports whether a record existed.
func (s *DeviceStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return false, err
	}
	id = strings.ToLower(id)
	for i := range state.Devices {
		if state.Devices[i].DeviceID == id {
			state.Devices = append(state.Devices[:i], state.Devices[i+1:]...)
			return true, s.save(state)
		}
	}
	return false, nil
}

// Clear removes the state file.
func (s *DeviceStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
