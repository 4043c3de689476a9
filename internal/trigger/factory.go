package trigger

import (
	"fmt"
	"sync"

	"github.com/melih-ucgun/vigil/internal/template"
)

// Constructor, bir kaynak tipi için trigger üreten fonksiyon tipidir.
type Constructor func(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, excludes []string) (Trigger, error)

var (
	registry   = make(map[string]Constructor)
	registryMu sync.RWMutex
)

// Register, yeni bir kaynak tipini trigger sistemine kaydeder.
// Yeni bir tip eklemek bir Register çağrısından ibarettir; controller'lar
// tek tek kaynak tiplerini tanımaz.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = ctor
}

func init() {
	// function tipinde zip/image ayrımı paketleme parametresinden yapılır.
	Register(template.TypeFunction, newFunctionTrigger)
	Register(template.TypeLayer, NewLayerCodeTrigger)
	Register(template.TypeAPI, NewDefinitionTrigger)
	Register(template.TypeStack, newNestedStackTrigger)
}

func newFunctionTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, excludes []string) (Trigger, error) {
	res, ok := template.FindResource(stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	props, err := res.FunctionProps()
	if err != nil {
		return nil, err
	}
	if props.Packaging == "image" {
		return NewImageCodeTrigger(id, stacks, baseDir, onChange, excludes)
	}
	return NewZipCodeTrigger(id, stacks, baseDir, onChange, excludes)
}

// newNestedStackTrigger, iç içe bir stack'in kendi şablon dosyasını izler.
func newNestedStackTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, _ []string) (Trigger, error) {
	childPath := id.Name
	if id.StackPath != "" {
		childPath = id.StackPath + "/" + id.Name
	}
	child, ok := template.FindStack(stacks, childPath)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	return NewTemplateTrigger(id, child.TemplatePath, onChange), nil
}

// Factory, stack modelinin tek bir nesline bağlı trigger fabrikasıdır.
// Model yeniden yüklendiğinde factory de yeniden oluşturulur.
type Factory struct {
	Stacks  []*template.Stack
	BaseDir string
	// ExcludesFor, kaynak başına birleştirilmiş dışlama desenlerini verir.
	// Boş bırakılırsa hiçbir desen uygulanmaz.
	ExcludesFor func(id template.ResourceID) []string
}

// CreateTrigger, kimliği verilen kaynak için trigger üretir. Tip kayıtlı
// değilse (nil, nil) döner; çağıran bu kaynağı sessizce atlar. Kaynak modelde
// yoksa ResourceNotFoundError döner.
func (f *Factory) CreateTrigger(id template.ResourceID, onChange OnChange, extraExcludes ...string) (Trigger, error) {
	res, ok := template.FindResource(f.Stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}

	registryMu.RLock()
	ctor, known := registry[res.Type]
	registryMu.RUnlock()
	if !known {
		return nil, nil
	}

	var excludes []string
	if f.ExcludesFor != nil {
		excludes = append(excludes, f.ExcludesFor(id)...)
	}
	excludes = append(excludes, extraExcludes...)

	trg, err := ctor(id, f.Stacks, f.BaseDir, onChange, excludes)
	if err != nil {
		return nil, fmt.Errorf("trigger kurulamadı (%s): %w", id, err)
	}
	return trg, nil
}
