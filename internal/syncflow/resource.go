package syncflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/state"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/transport"
)

// Deps, akışların paylaştığı collaborator'ları taşır. Factory ile birlikte
// stack modelinin tek nesline bağlıdır.
type Deps struct {
	Logger    *slog.Logger
	Builder   *pipeline.Builder
	Packager  *pipeline.Packager
	Deployer  *pipeline.Deployer
	Transport transport.Transport
	State     *state.Manager
	Excludes  []string
}

// artifactSyncFlow, kod dizini olan kaynakların (fonksiyon, katman) ortak
// akış gövdesidir: derle, paketle, uzak artifact ile karşılaştır, yükle.
type artifactSyncFlow struct {
	id      template.ResourceID
	res     *template.Resource
	srcDir  string
	deps    *Deps
	factory *Factory

	localHash string
	remoteID  string
}

func (f *artifactSyncFlow) ResourceID() template.ResourceID {
	return f.id
}

// GatherResources, yerel kod ağacının özetini çıkarır.
func (f *artifactSyncFlow) GatherResources() error {
	info, err := os.Stat(f.srcDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("kaynağın kod dizini okunamıyor (%s): %s", f.id, f.srcDir)
	}
	hash, err := pipeline.HashDir(f.srcDir, f.deps.Excludes)
	if err != nil {
		return fmt.Errorf("yerel özet hesaplanamadı (%s): %w", f.id, err)
	}
	f.localHash = hash
	return nil
}

// CompareRemote, kayıtlı fiziksel kimliği ve uzak artifact özetini kontrol
// eder. Fiziksel kimlik yoksa dağıtılmış stack bu kaynağı hiç görmemiştir;
// uzak özet okunamıyorsa akışın varsayımları bayattır. İki durum da infra
// sync'e yükseltilir.
func (f *artifactSyncFlow) CompareRemote() (bool, error) {
	physicalID, ok := f.deps.State.PhysicalID(f.id.String())
	if !ok {
		return false, &MissingPhysicalResourceError{ID: f.id}
	}
	f.remoteID = physicalID

	remoteHash, err := f.deps.Transport.ReadFile(context.Background(), physicalID+".sha256")
	if err != nil {
		return false, &InfraSyncRequiredError{ID: f.id, Reason: fmt.Sprintf("uzak özet okunamadı: %v", err)}
	}
	return strings.TrimSpace(string(remoteHash)) == f.localHash, nil
}

// Sync, kaynağı derler, paketler ve hedefe yükler.
func (f *artifactSyncFlow) Sync(ctx context.Context) error {
	builtDir, err := f.deps.Builder.BuildResource(ctx, f.res)
	if err != nil {
		return err
	}
	artifact, err := f.deps.Packager.PackageResource(f.id, builtDir)
	if err != nil {
		return err
	}
	if _, err := f.deps.Deployer.DeployArtifact(ctx, f.id, artifact); err != nil {
		return err
	}
	_, err = f.deps.State.RecordTransaction("resource", "success", []string{f.id.String()})
	return err
}

// functionSyncFlow, zip paketli bir fonksiyonun akışıdır.
type functionSyncFlow struct {
	artifactSyncFlow
}

func (f *functionSyncFlow) GatherDependencies() []SyncFlow {
	return nil
}

// layerSyncFlow, bir katmanın akışıdır. Katman değiştiğinde onu kullanan
// fonksiyonlar da yeniden yüklenmek zorundadır.
type layerSyncFlow struct {
	artifactSyncFlow
}

func (f *layerSyncFlow) GatherDependencies() []SyncFlow {
	var flows []SyncFlow
	for _, depID := range f.factory.dependentsOfLayer(f.id) {
		if flow := f.factory.CreateSyncFlow(depID); flow != nil {
			flows = append(flows, flow)
		}
	}
	return flows
}
