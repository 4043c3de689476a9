package template

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/expr-lang/expr"
)

// RenderData, parametre değerlerinin render edildiği bağlamdır.
type RenderData struct {
	Vars map[string]string // şablonun vars bölümü + .env ezmeleri
	Env  map[string]string // süreç ortam değişkenleri
}

// RenderValue, verilen içeriği (content) sağlanan veri ile işler.
// missingkey=zero allows optional variables (returning nil/zero), which works
// with Sprig's 'default'. Use 'required' from Sprig for mandatory variables.
func RenderValue(content string, data *RenderData) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tmpl, err := texttemplate.New("vigil").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// EvaluateCondition, bir kaynağın 'when' ifadesini değerlendirir.
// İfade bool dönmek zorundadır; dönmüyorsa hata üretilir.
func EvaluateCondition(condition string, data *RenderData) (bool, error) {
	env := map[string]interface{}{
		"vars": data.Vars,
		"env":  data.Env,
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("when ifadesi derlenemedi (%q): %w", condition, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("when ifadesi çalıştırılamadı (%q): %w", condition, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("when ifadesi bool dönmedi (%q)", condition)
	}
	return result, nil
}

// processEnviron, os.Environ çıktısını map'e çevirir.
func processEnviron() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
