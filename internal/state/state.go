package state

import "time"

// Deployment, yerel stack ile uzak taraf arasındaki eşlemenin snapshot'ıdır.
type Deployment struct {
	Version string `json:"version"`
	LastRun time.Time `json:"last_run"`
	// PhysicalIDs, kaynak kimliği -> dağıtılmış (fiziksel) kimlik eşlemesidir.
	// Sync akışları uzak hedefi buradan çözer.
	PhysicalIDs map[string]string `json:"physical_ids"`
	// Hashes, kaynak başına son yüklenen artifact hash'idir.
	Hashes map[string]string `json:"hashes"`
	// History, dağıtım oturumlarının kaydıdır.
	History []Transaction `json:"history,omitempty"`
}

// Transaction represents one deploy/sync session.
type Transaction struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`   // "infra" veya "resource"
	Status    string    `json:"status"` // success, failed
	Resources []string  `json:"resources,omitempty"`
}

func NewDeployment() *Deployment {
	return &Deployment{
		Version:     "1.0",
		PhysicalIDs: make(map[string]string),
		Hashes:      make(map[string]string),
	}
}
