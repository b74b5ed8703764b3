// Package state persists engine state in a write-ahead log so restarts
// resume from the last committed cycle.
package state

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"adaptrader/internal/domain"
)

const (
	DefaultDir   = "./wal/engine"
	segmentLimit = 1000
	maxSegments  = 10

	stateKey     = "engine_state"
	overridesKey = "runtime_overrides"
	forecastKey  = "forecast_state"
)

// WALStore persists engine state snapshots in a WAL. The latest record per
// key wins on load; older segments rotate away.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed engine state store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "engine_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init engine state WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveState appends the engine state snapshot.
func (s *WALStore) SaveState(state domain.EngineState) error {
	return s.append(stateKey, state)
}

// SaveOverrides appends the adaptation overrides. Overrides live under their
// own key so the adaptation cadence can persist independently of the trade
// cycle.
func (s *WALStore) SaveOverrides(ov domain.RuntimeOverrides) error {
	return s.append(overridesKey, ov)
}

// SaveForecast appends the latest forecast output.
func (s *WALStore) SaveForecast(fc domain.ForecastState) error {
	return s.append(forecastKey, fc)
}

func (s *WALStore) append(key string, v any) error {
	if s == nil || s.wal == nil {
		return errors.New("engine state store is not initialized")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// LoadState replays the WAL and returns the latest engine state snapshot.
// The bool reports whether a snapshot exists.
func (s *WALStore) LoadState() (domain.EngineState, bool, error) {
	payload, ok, err := s.latest(stateKey)
	if err != nil || !ok {
		return domain.EngineState{}, false, err
	}

	var state domain.EngineState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.EngineState{}, false, errors.Wrap(err, "decode engine state")
	}
	return state, true, nil
}

// LoadOverrides returns the latest persisted adaptation overrides.
func (s *WALStore) LoadOverrides() (domain.RuntimeOverrides, bool, error) {
	payload, ok, err := s.latest(overridesKey)
	if err != nil || !ok {
		return domain.RuntimeOverrides{}, false, err
	}

	var ov domain.RuntimeOverrides
	if err := json.Unmarshal(payload, &ov); err != nil {
		return domain.RuntimeOverrides{}, false, errors.Wrap(err, "decode overrides")
	}
	return ov, true, nil
}

// LoadForecast returns the latest persisted forecast output.
func (s *WALStore) LoadForecast() (domain.ForecastState, bool, error) {
	payload, ok, err := s.latest(forecastKey)
	if err != nil || !ok {
		return domain.ForecastState{}, false, err
	}

	var fc domain.ForecastState
	if err := json.Unmarshal(payload, &fc); err != nil {
		return domain.ForecastState{}, false, errors.Wrap(err, "decode forecast")
	}
	return fc, true, nil
}

func (s *WALStore) latest(wantKey string) ([]byte, bool, error) {
	if s == nil || s.wal == nil {
		return nil, false, errors.New("engine state store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest []byte
	current := s.wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if key == wantKey {
			latest = payload
		}
	}

	if latest == nil {
		return nil, false, nil
	}
	return latest, true, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("engine state store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
