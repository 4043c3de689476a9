package trigger

import (
	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
)

// DefinitionTrigger, bir kaynağın referans verdiği harici tanım dosyasını
// (örn. OpenAPI spesifikasyonu) izler.
type DefinitionTrigger struct {
	id             template.ResourceID
	definitionPath string
	onChange       OnChange
}

// NewDefinitionTrigger, api tipindeki bir kaynağın tanım dosyası için
// trigger kurar. Tanım parametresi boşsa MissingDefinitionError döner.
func NewDefinitionTrigger(id template.ResourceID, stacks []*template.Stack, baseDir string, onChange OnChange, _ []string) (Trigger, error) {
	res, ok := template.FindResource(stacks, id)
	if !ok {
		return nil, &template.ResourceNotFoundError{ID: id}
	}
	props, err := res.APIProps()
	if err != nil {
		return nil, err
	}
	if props.Definition == "" {
		return nil, &MissingDefinitionError{ID: id, Property: "definition"}
	}
	return &DefinitionTrigger{
		id:             id,
		definitionPath: resolveDir(baseDir, props.Definition),
		onChange:       onChange,
	}, nil
}

func (t *DefinitionTrigger) ResourceID() template.ResourceID {
	return t.id
}

func (t *DefinitionTrigger) PathHandlers() []observer.PathHandler {
	return []observer.PathHandler{{
		Path:    t.definitionPath,
		OnEvent: t.onChange,
	}}
}
