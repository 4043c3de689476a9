package syncflow

import (
	"context"
	"fmt"

	"github.com/melih-ucgun/vigil/internal/template"
)

// SyncFlow, tek bir kaynağın yerel durumunu tam bir altyapı dağıtımı
// yapmadan uzak karşılığıyla eşitleyen iş birimidir.
type SyncFlow interface {
	// ResourceID, akışın dedup anahtarıdır.
	ResourceID() template.ResourceID
	// GatherResources, yerel girdileri (kod, artifact, hash) toplar.
	GatherResources() error
	// CompareRemote, uzak durumun yerel durumla aynı olup olmadığını söyler.
	// true dönerse Sync atlanabilir.
	CompareRemote() (bool, error)
	// Sync, kaynağı uzak tarafla eşitler.
	Sync(ctx context.Context) error
	// GatherDependencies, bu akış tamamlandığında tetiklenmesi gereken
	// bağımlı akışları döner.
	GatherDependencies() []SyncFlow
}

// MissingPhysicalResourceError, dağıtılmış stack yerel akışın beklediği
// kaynağı içermediğinde döner. Controller bunu tam bir infra sync'e yükseltir.
type MissingPhysicalResourceError struct {
	ID template.ResourceID
}

func (e *MissingPhysicalResourceError) Error() string {
	return fmt.Sprintf("fiziksel kaynak dağıtımda yok: %s", e.ID)
}

// InfraSyncRequiredError, akışın uzak durum hakkındaki varsayımlarının
// bayatladığını fark ettiğinde döner; tam infra sync gerektirir.
type InfraSyncRequiredError struct {
	ID     template.ResourceID
	Reason string
}

func (e *InfraSyncRequiredError) Error() string {
	return fmt.Sprintf("infra sync gerekli (%s): %s", e.ID, e.Reason)
}
