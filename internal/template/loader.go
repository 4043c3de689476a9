package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// maxNestingDepth, iç içe stack derinliği sınırıdır. Döngüsel template
// referanslarının loader'ı kilitlemesini engeller.
const maxNestingDepth = 5

// Loader, şablon dosyasını diskten okuyup taze bir stack snapshot'ı üretir.
// Her Load çağrısı dosyayı yeniden parse eder; "değişti mi" takibi yapmaz.
// Controller'lar ellerindeki snapshot ile çalışır ve sadece belirli reload
// noktalarında yenisini ister.
type Loader struct {
	BaseDir   string
	EnvFiles  []string          // godotenv ile okunacak .env dosyaları
	Overrides map[string]string // vars üzerine en son yazılan değerler
}

// Load, verilen şablonu kök stack olarak yükler.
func (l *Loader) Load(path string) ([]*Stack, error) {
	root, err := l.loadStack(path, "", 0)
	if err != nil {
		return nil, err
	}
	return []*Stack{root}, nil
}

func (l *Loader) loadStack(path, stackPath string, depth int) (*Stack, error) {
	if depth > maxNestingDepth {
		return nil, &InvalidTemplateError{Path: path, Err: fmt.Errorf("stack derinliği sınırı aşıldı (%d)", maxNestingDepth)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TransientTemplateError{Path: path}
		}
		return nil, &InvalidTemplateError{Path: path, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		// Editörlerin truncate-then-write kaydı sırasında dosya bir an boş olur.
		return nil, &TransientTemplateError{Path: path}
	}

	var raw templateFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidTemplateError{Path: path, Err: err}
	}

	vars, err := l.mergeVars(raw.Vars)
	if err != nil {
		return nil, err
	}
	renderData := &RenderData{Vars: vars, Env: processEnviron()}

	stack := &Stack{
		Path:         stackPath,
		TemplatePath: path,
		Vars:         vars,
		Hosts:        raw.Hosts,
	}

	for _, cfg := range raw.Resources {
		if cfg.Name == "" {
			return nil, &InvalidTemplateError{Path: path, Err: fmt.Errorf("isimsiz kaynak tanımı")}
		}

		if cfg.When != "" {
			ok, err := EvaluateCondition(cfg.When, renderData)
			if err != nil {
				return nil, &InvalidTemplateError{Path: path, Err: err}
			}
			if !ok {
				slog.Debug("kaynak atlandı, when koşulu sağlanmadı", "resource", cfg.Name)
				continue
			}
		}

		params, err := renderParams(cfg.Params, renderData)
		if err != nil {
			return nil, &InvalidTemplateError{Path: path, Err: fmt.Errorf("%s: %w", cfg.Name, err)}
		}

		res := &Resource{
			ID:     ResourceID{StackPath: stackPath, Name: cfg.Name},
			Type:   cfg.Type,
			Params: params,
		}
		stack.Resources = append(stack.Resources, res)

		if cfg.Type == TypeStack {
			props, err := res.StackProps()
			if err != nil {
				return nil, &InvalidTemplateError{Path: path, Err: err}
			}
			if props.Template == "" {
				return nil, &InvalidTemplateError{Path: path, Err: fmt.Errorf("%s: iç içe stack için template parametresi zorunlu", cfg.Name)}
			}
			childPath := props.Template
			if !filepath.IsAbs(childPath) {
				childPath = filepath.Join(filepath.Dir(path), childPath)
			}
			childStackPath := cfg.Name
			if stackPath != "" {
				childStackPath = stackPath + "/" + cfg.Name
			}
			child, err := l.loadStack(childPath, childStackPath, depth+1)
			if err != nil {
				return nil, err
			}
			stack.Children = append(stack.Children, child)
		}
	}

	return stack, nil
}

// mergeVars, öncelik sırası: şablon vars < .env dosyaları < Overrides.
func (l *Loader) mergeVars(templateVars map[string]string) (map[string]string, error) {
	vars := make(map[string]string, len(templateVars))
	for k, v := range templateVars {
		vars[k] = v
	}

	for _, file := range l.EnvFiles {
		envVars, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("env dosyası okunamadı (%s): %w", file, err)
		}
		for k, v := range envVars {
			vars[k] = v
		}
	}

	for k, v := range l.Overrides {
		vars[k] = v
	}
	return vars, nil
}

// renderParams, parametre ağacındaki her string değeri sprig ile işler.
func renderParams(params map[string]interface{}, data *RenderData) (map[string]interface{}, error) {
	if params == nil {
		return map[string]interface{}{}, nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		rendered, err := renderValueTree(v, data)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}

func renderValueTree(v interface{}, data *RenderData) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return RenderValue(t, data)
	case map[string]interface{}:
		return renderParams(t, data)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			rendered, err := renderValueTree(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}
