package trigger

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
)

// codeTrigger, bir kaynağın yerel kod dizinini recursive + stable-folder
// modunda izleyen ortak gövdedir. Zip, image ve layer varyantları yalnızca
// dizini farklı parametrelerden çözer.
type codeTrigger struct {
	id       template.ResourceID
	codeDir  string
	onChange OnChange
	excludes []string
}

func (t *codeTrigger) ResourceID() template.ResourceID {
	return t.id
}

func (t *codeTrigger) PathHandlers() []observer.PathHandler {
	// Dizinin kendisinin oluşması/silinmesi de değişikliktir: stable-folder
	// geçiş callback'leri onChange'e bağlanır.
	selfEvent := func(op fsnotify.Op) func() {
		return func() {
			t.onChange(fsnotify.Event{Name: t.codeDir, Op: op})
		}
	}
	return []observer.PathHandler{{
		Path:         t.codeDir,
		OnEvent:      t.onChange,
		Recursive:    true,
		StableFolder: true,
		OnSelfCreate: selfEvent(fsnotify.Create),
		OnSelfDelete: selfEvent(fsnotify.Remove),
		Excludes:     t.excludes,
	}}
}

// resolveDir, şablondaki göreli yolu baseDir altına oturtur.
func resolveDir(baseDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

// NewZipCodeTrigger, zip paketlenen bir fonksiyonun kaynak ağacını izler.
func NewZipCodeTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, excludes []string) (Trigger, error) {
	res, ok := template.FindResource(stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	props, err := res.FunctionProps()
	if err != nil {
		return nil, err
	}
	if props.CodeDir == "" {
		return nil, &MissingCodeDirError{ID: id}
	}
	return &codeTrigger{
		id:       id,
		codeDir:  resolveDir(baseDir, props.CodeDir),
		onChange: onChange,
		excludes: excludes,
	}, nil
}

// NewImageCodeTrigger, image paketlenen bir fonksiyonun Docker build
// context'ini izler. context verilmemişse codeDir kullanılır.
func NewImageCodeTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, excludes []string) (Trigger, error) {
	res, ok := template.FindResource(stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	props, err := res.FunctionProps()
	if err != nil {
		return nil, err
	}
	dir := props.Context
	if dir == "" {
		dir = props.CodeDir
	}
	if dir == "" {
		return nil, &MissingCodeDirError{ID: id}
	}
	return &codeTrigger{
		id:       id,
		codeDir:  resolveDir(baseDir, dir),
		onChange: onChange,
		excludes: excludes,
	}, nil
}

// NewLayerCodeTrigger, bir katmanın içerik dizinini izler.
func NewLayerCodeTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, excludes []string) (Trigger, error) {
	res, ok := template.FindResource(stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	props, err := res.LayerProps()
	if err != nil {
		return nil, err
	}
	if props.ContentDir == "" {
		return nil, &MissingCodeDirError{ID: id}
	}
	return &codeTrigger{
		id:       id,
		codeDir:  resolveDir(baseDir, props.ContentDir),
		onChange: onChange,
		excludes: excludes,
	}, nil
}
