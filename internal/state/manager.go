package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyLimit, state dosyasında tutulan son işlem sayısıdır.
const historyLimit = 50

// Manager manages reading/writing the deployment state file.
// It uses a mutex for thread-safety; sync akışları işçi havuzundan
// eşzamanlı yazar.
type Manager struct {
	FilePath string

	mu      sync.RWMutex
	current *Deployment
}

// NewManager creates a manager and loads the existing file if present.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		FilePath: path,
		current:  NewDeployment(),
	}
	if err := m.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// Load reads the state file from disk.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.FilePath)
	if err != nil {
		return err
	}
	loaded := NewDeployment()
	if err := json.Unmarshal(data, loaded); err != nil {
		return err
	}
	if loaded.PhysicalIDs == nil {
		loaded.PhysicalIDs = make(map[string]string)
	}
	if loaded.Hashes == nil {
		loaded.Hashes = make(map[string]string)
	}
	m.current = loaded
	return nil
}

// Save writes the current state to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	m.current.LastRun = time.Now()

	data, err := json.MarshalIndent(m.current, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.FilePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.FilePath, data, 0644)
}

// PhysicalID, kaynak için kayıtlı fiziksel kimliği döner.
func (m *Manager) PhysicalID(resource string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.current.PhysicalIDs[resource]
	return id, ok
}

// Hash, kaynağın son yüklenen artifact hash'ini döner.
func (m *Manager) Hash(resource string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.current.Hashes[resource]
	return h, ok
}

// RecordResource, bir kaynağın fiziksel kimliğini ve hash'ini günceller
// ve dosyayı kaydeder.
func (m *Manager) RecordResource(resource, physicalID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.PhysicalIDs[resource] = physicalID
	m.current.Hashes[resource] = hash
	return m.saveLocked()
}

// RecordTransaction, bir dağıtım oturumunu geçmişe ekler ve kaydeder.
func (m *Manager) RecordTransaction(kind, status string, resources []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := Transaction{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Kind:      kind,
		Status:    status,
		Resources: resources,
	}
	m.current.History = append(m.current.History, tx)
	if len(m.current.History) > historyLimit {
		m.current.History = m.current.History[len(m.current.History)-historyLimit:]
	}
	return tx.ID, m.saveLocked()
}
