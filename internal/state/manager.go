package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const engineStateFileMode = 0600

// EngineState remembers the active session and policy across restarts, so
// `steward chat` resumes where the user left off.
type EngineState struct {
	LastSessionID string    `json:"last_session_id"`
	Policy        string    `json:"policy"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Manager persists lightweight runtime state.
type Manager struct {
	enginePath string
	mu         sync.Mutex
}

// NewManager creates a state manager under stateDir.
func NewManager(stateDir string) *Manager {
	return &Manager{
		enginePath: filepath.Join(stateDir, "engine.json"),
	}
}

// LoadEngineState reads engine state from disk.
// Missing or malformed files are treated as empty state.
func (m *Manager) LoadEngineState() (EngineState, error) {
	data, err := os.ReadFile(m.enginePath)
	if err != nil {
		if os.IsNotExist(err) {
			return EngineState{}, nil
		}
		return EngineState{}, err
	}

	var st EngineState
	if err := json.Unmarshal(data, &st); err != nil {
		return EngineState{}, nil
	}
	st.LastSessionID = strings.TrimSpace(st.LastSessionID)
	st.Policy = strings.TrimSpace(st.Policy)
	return st, nil
}

// SaveEngineState writes engine state to disk.
func (m *Manager) SaveEngineState(st EngineState) error {
	st.LastSessionID = strings.TrimSpace(st.LastSessionID)
	st.Policy = strings.TrimSpace(st.Policy)
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.enginePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.enginePath, data, engineStateFileMode)
}
