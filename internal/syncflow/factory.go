package syncflow

import (
	"os"
	"path/filepath"

	"github.com/melih-ucgun/vigil/internal/template"
)

// Factory, kaynak kimliklerini sync akışlarına çevirir. Stack snapshot'ı
// ve akış bağımlılıkları her infra sync sonrasında tazelenir; factory bu
// yüzden ucuz ve yeniden yaratılabilir tutulur.
type Factory struct {
	Stacks  []*template.Stack
	BaseDir string
	Deps    *Deps
}

// LoadPhysicalIDMapping, state dosyasındaki fiziksel kimlik eşlemesini
// yükler. Dosyanın hiç olmaması hata değildir; ilk akış fiziksel kimlik
// bulamayınca zaten infra sync'e yükseltilir.
func (f *Factory) LoadPhysicalIDMapping() error {
	if err := f.Deps.State.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CreateSyncFlow, kaynağın tipine uygun akışı kurar. Hızlı yolu olmayan
// tipler (imaj paketli fonksiyonlar, api'ler, iç içe stackler) için nil
// döner; bu kaynaklar yalnızca infra sync ile güncellenir.
func (f *Factory) CreateSyncFlow(id template.ResourceID) SyncFlow {
	res, ok := template.FindResource(f.Stacks, id)
	if !ok {
		return nil
	}

	switch res.Type {
	case template.TypeFunction:
		props, err := res.FunctionProps()
		if err != nil || props.Packaging == "image" || props.CodeDir == "" {
			// İmaj paketli fonksiyonların hızlı yolu yok; registry üzerinden
			// dağıtım infra sync'in işidir.
			return nil
		}
		flow := &functionSyncFlow{}
		flow.init(f, id, res, props.CodeDir)
		return flow
	case template.TypeLayer:
		props, err := res.LayerProps()
		if err != nil || props.ContentDir == "" {
			return nil
		}
		flow := &layerSyncFlow{}
		flow.init(f, id, res, props.ContentDir)
		return flow
	default:
		return nil
	}
}

func (a *artifactSyncFlow) init(f *Factory, id template.ResourceID, res *template.Resource, dir string) {
	a.id = id
	a.res = res
	a.srcDir = resolveDir(f.BaseDir, dir)
	a.deps = f.Deps
	a.factory = f
}

// dependentsOfLayer, verilen katmanı params.layers listesinde anan
// fonksiyonları döner. Katman adları stack içinde çözülür; başka bir
// stack'in aynı adlı katmanı eşleşmez.
func (f *Factory) dependentsOfLayer(layerID template.ResourceID) []template.ResourceID {
	var dependents []template.ResourceID
	for _, id := range template.AllResourceIDs(f.Stacks) {
		if id.StackPath != layerID.StackPath {
			continue
		}
		res, ok := template.FindResource(f.Stacks, id)
		if !ok || res.Type != template.TypeFunction {
			continue
		}
		props, err := res.FunctionProps()
		if err != nil {
			continue
		}
		for _, name := range props.Layers {
			if name == layerID.Name {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

func resolveDir(baseDir, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(baseDir, dir)
}
