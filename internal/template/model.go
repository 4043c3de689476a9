package template

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Kaynak tipleri. Trigger factory ve sync-flow factory bu string'ler
// üzerinden kayıt yapar; yeni bir tip eklemek registry'ye bir satır eklemektir.
const (
	TypeFunction = "function"
	TypeLayer    = "layer"
	TypeAPI      = "api"
	TypeStack    = "stack"
)

// ResourceID, (iç içe olabilen) bir stack içindeki kaynağı adresler.
// Comparable'dır; hem trigger'lar hem de kuyruklanan sync işleri için
// dedup anahtarı olarak kullanılır.
type ResourceID struct {
	StackPath string // kök stack için boş, iç içe stacklerde "child/grand"
	Name      string
}

func (id ResourceID) String() string {
	if id.StackPath == "" {
		return id.Name
	}
	return id.StackPath + "/" + id.Name
}

// ResourceConfig, YAML'dan okunan ham kaynak tanımıdır.
// Loader bu yapıyı işleyip Resource nesnelerine çevirir.
type ResourceConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	When   string                 `yaml:"when,omitempty"`
	Params map[string]interface{} `yaml:"params"`
}

// Host, sync modunda artifact'ların gönderileceği uzak sunucuyu tanımlar.
type Host struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	User       string `yaml:"user"`
	Port       int    `yaml:"port"`
	SSHKeyPath string `yaml:"ssh_key_path"`
	RemoteDir  string `yaml:"remote_dir"`
}

// templateFile, şablon dosyasının ham YAML şemasıdır.
type templateFile struct {
	Vars      map[string]string `yaml:"vars"`
	Hosts     []Host            `yaml:"hosts"`
	Resources []ResourceConfig  `yaml:"resources"`
}

// Resource, yüklenmiş ve render edilmiş tek bir kaynaktır.
type Resource struct {
	ID     ResourceID
	Type   string
	Params map[string]interface{}
}

// Stack, parse edilmiş şablonun bir (iç içe olabilen) birimidir.
// Loader her Load çağrısında taze, immutable bir snapshot üretir;
// hiçbir bileşen yüklenmiş bir Stack'i değiştirmez.
type Stack struct {
	Path         string // kök için boş
	TemplatePath string // bu stack'in okunduğu dosya
	Vars         map[string]string
	Hosts        []Host
	Resources    []*Resource
	Children     []*Stack
}

// FunctionProps holds the decoded parameters of a function resource.
type FunctionProps struct {
	CodeDir   string `mapstructure:"codeDir"`
	Packaging string `mapstructure:"packaging"` // "zip" (default) or "image"
	Context   string `mapstructure:"context"`   // image build context
	Handler   string   `mapstructure:"handler"`
	Runtime   string   `mapstructure:"runtime"`
	Build     string   `mapstructure:"build"`  // custom build command
	Layers    []string `mapstructure:"layers"` // referenced layer resource names
}

// LayerProps holds the decoded parameters of a layer resource.
type LayerProps struct {
	ContentDir string `mapstructure:"contentDir"`
	Build      string `mapstructure:"build"`
}

// APIProps holds the decoded parameters of an api resource.
type APIProps struct {
	Definition string `mapstructure:"definition"` // external definition file (OpenAPI)
}

// StackProps holds the decoded parameters of a nested stack resource.
type StackProps struct {
	Template string `mapstructure:"template"`
}

// decodeParams, parametre map'ini struct'a çevirir.
func decodeParams(input map[string]interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true, // string -> int, string -> bool dönüşümleri için esneklik
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// FunctionProps decodes the resource's params as a function.
func (r *Resource) FunctionProps() (*FunctionProps, error) {
	props := &FunctionProps{Packaging: "zip"}
	if err := decodeParams(r.Params, props); err != nil {
		return nil, fmt.Errorf("%s parametreleri çözümlenemedi: %w", r.ID, err)
	}
	return props, nil
}

// LayerProps decodes the resource's params as a layer.
func (r *Resource) LayerProps() (*LayerProps, error) {
	props := &LayerProps{}
	if err := decodeParams(r.Params, props); err != nil {
		return nil, fmt.Errorf("%s parametreleri çözümlenemedi: %w", r.ID, err)
	}
	return props, nil
}

// APIProps decodes the resource's params as an api.
func (r *Resource) APIProps() (*APIProps, error) {
	props := &APIProps{}
	if err := decodeParams(r.Params, props); err != nil {
		return nil, fmt.Errorf("%s parametreleri çözümlenemedi: %w", r.ID, err)
	}
	return props, nil
}

// StackProps decodes the resource's params as a nested stack reference.
func (r *Resource) StackProps() (*StackProps, error) {
	props := &StackProps{}
	if err := decodeParams(r.Params, props); err != nil {
		return nil, fmt.Errorf("%s parametreleri çözümlenemedi: %w", r.ID, err)
	}
	return props, nil
}
