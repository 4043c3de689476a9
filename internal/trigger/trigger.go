package trigger

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
)

// OnChange, bir trigger'ın değişiklik bildirim callback'idir.
type OnChange func(fsnotify.Event)

// Trigger maps a resource to the filesystem paths to watch and the handlers
// to run when they change. A trigger's lifetime is bound to one generation of
// the parsed stack model: it is discarded and recreated on every reload.
type Trigger interface {
	// ResourceID, trigger'ın bağlı olduğu kaynağın kimliğidir.
	ResourceID() template.ResourceID
	// PathHandlers, planlanacak izleme kayıtlarını üretir.
	PathHandlers() []observer.PathHandler
}

// MissingCodeDirError, kod dizini olmayan bir fonksiyon/katman için
// trigger kurulmaya çalışıldığında döner.
type MissingCodeDirError struct {
	ID template.ResourceID
}

func (e *MissingCodeDirError) Error() string {
	return fmt.Sprintf("kaynağın yerel kod dizini yok: %s", e.ID)
}

// MissingDefinitionError, dış tanım dosyası beklenen bir kaynakta ilgili
// parametre boş olduğunda döner.
type MissingDefinitionError struct {
	ID       template.ResourceID
	Property string
}

func (e *MissingDefinitionError) Error() string {
	return fmt.Sprintf("kaynağın yerel tanım dosyası yok: %s (parametre: %s)", e.ID, e.Property)
}
