package trigger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
)

// TemplateTrigger, şablon dosyasının kendisini izler. onChange yalnızca
// dosya hem geçerli YAML olduğunda hem de son gözlenen sürümden yapısal
// olarak farklı olduğunda çağrılır: editörlerin no-op auto-save'leri ve
// kayıt ortasındaki geçici bozuk halleri elenir.
type TemplateTrigger struct {
	id           template.ResourceID
	templatePath string
	onChange     OnChange
	validator    *changeValidator
}

// NewTemplateTrigger, verilen şablon dosyası için bir trigger kurar.
// id, iç içe stack trigger'larında sahibi olan kaynağı taşır; kök şablon
// için boş bırakılır.
func NewTemplateTrigger(id template.ResourceID, templatePath string, onChange OnChange) *TemplateTrigger {
	return &TemplateTrigger{
		id:           id,
		templatePath: templatePath,
		onChange:     onChange,
		validator:    newChangeValidator(templatePath),
	}
}

func (t *TemplateTrigger) ResourceID() template.ResourceID {
	return t.id
}

func (t *TemplateTrigger) PathHandlers() []observer.PathHandler {
	return []observer.PathHandler{{
		Path: t.templatePath,
		OnEvent: func(ev fsnotify.Event) {
			if ev.Op.Has(fsnotify.Chmod) {
				return
			}
			if t.validator.materialChange() {
				t.onChange(ev)
			}
		},
	}}
}

// changeValidator, şablonun son geçerli kanonik halini tutar ve yeni halin
// "gerçekten farklı" olup olmadığına karar verir.
type changeValidator struct {
	path string

	mu   sync.Mutex
	last string
}

func newChangeValidator(path string) *changeValidator {
	v := &changeValidator{path: path}
	if canonical, ok := canonicalize(path); ok {
		v.last = canonical
	}
	return v
}

// materialChange, dosyanın güncel halini okuyup son sürümle karşılaştırır.
// Geçersiz / geçici olarak okunamayan içerik değişiklik sayılmaz; bir
// sonraki olayda tekrar bakılır.
func (v *changeValidator) materialChange() bool {
	canonical, ok := canonicalize(v.path)
	if !ok {
		slog.Debug("şablon henüz geçerli değil, olay atlandı", "path", v.path)
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if canonical == v.last {
		return false
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("şablon değişti", "path", v.path, "diff", generateDiff(v.last, canonical))
	}
	v.last = canonical
	return true
}

// canonicalize, dosyayı parse edip deterministik YAML'a geri yazar.
// Yorum ve boşluk değişiklikleri böylece elenmiş olur.
func canonicalize(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return "", false
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", false
	}
	return string(out), true
}
