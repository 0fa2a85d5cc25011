package vessel

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/vesselframework/vessel/internal/logging"
)

// FactoryRegistry maps names to constructor functions so YAML documents
// can reference them. Go cannot look functions up by name at runtime, so
// every constructor a document uses must be registered here first.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]any
}

// NewFactoryRegistry builds an empty factory registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]any)}
}

// Register binds a constructor to a name.
func (f *FactoryRegistry) Register(name string, constructor any) error {
	if name == "" {
		return ErrNameEmpty
	}
	if constructor == nil {
		return ErrConstructorNil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.factories[name]; exists {
		return fmt.Errorf("factory %q already registered", name)
	}
	f.factories[name] = constructor
	return nil
}

// Lookup returns the constructor registered under a name.
func (f *FactoryRegistry) Lookup(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ctor, ok := f.factories[name]
	return ctor, ok
}

// Names returns registered factory names, sorted.
func (f *FactoryRegistry) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.factories))
	for name := range f.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// yamlDocument is the top-level shape of a definition file.
type yamlDocument struct {
	Components map[string]yamlComponent `yaml:"components"`
	Aliases    map[string]string        `yaml:"aliases"`
}

type yamlComponent struct {
	Constructor       string               `yaml:"constructor"`
	Parent            string               `yaml:"parent"`
	Scope             string               `yaml:"scope"`
	Lazy              *bool                `yaml:"lazy"`
	Primary           *bool                `yaml:"primary"`
	Priority          *int                 `yaml:"priority"`
	AutowireCandidate *bool                `yaml:"autowireCandidate"`
	DependsOn         []string             `yaml:"dependsOn"`
	Args              []yamlValue          `yaml:"args"`
	Properties        map[string]yamlValue `yaml:"properties"`
	Init              string               `yaml:"init"`
	Destroy           string               `yaml:"destroy"`
}

// yamlValue is one configured value: exactly one of the forms applies.
type yamlValue struct {
	Value     *any           `yaml:"value"`
	Ref       string         `yaml:"ref"`
	Env       string         `yaml:"env"`
	Component *yamlComponent `yaml:"component"`
}

// Loader turns YAML definition documents into registry entries.
type Loader struct {
	registry  *Registry
	factories *FactoryRegistry
}

// NewLoader builds a loader targeting a registry.
func NewLoader(registry *Registry, factories *FactoryRegistry) *Loader {
	return &Loader{registry: registry, factories: factories}
}

// LoadFile reads one YAML definition document from disk.
func (l *Loader) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return LoadError{Source: path, Cause: err}
	}
	defer f.Close()
	return l.Load(f, path)
}

// Load reads one YAML definition document from a reader. source names the
// document in errors.
func (l *Loader) Load(r io.Reader, source string) error {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return LoadError{Source: source, Cause: err}
	}

	// Deterministic registration order keeps error output stable.
	names := make([]string, 0, len(doc.Components))
	for name := range doc.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, err := l.buildDefinition(name, doc.Components[name])
		if err != nil {
			return LoadError{Source: source, Cause: err}
		}
		if err := l.registry.Register(name, def); err != nil {
			return LoadError{Source: source, Cause: err}
		}
	}

	aliases := make([]string, 0, len(doc.Aliases))
	for alias := range doc.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		if err := l.registry.RegisterAlias(doc.Aliases[alias], alias); err != nil {
			return LoadError{Source: source, Cause: err}
		}
	}

	return nil
}

func (l *Loader) buildDefinition(name string, yc yamlComponent) (*Definition, error) {
	def := &Definition{
		Name:              name,
		Parent:            yc.Parent,
		Scope:             yc.Scope,
		LazyInit:          yc.Lazy,
		Primary:           yc.Primary,
		Priority:          yc.Priority,
		AutowireCandidate: yc.AutowireCandidate,
		DependsOn:         yc.DependsOn,
		InitFunc:          yc.Init,
		DestroyFunc:       yc.Destroy,
	}

	if yc.Constructor != "" {
		ctor, ok := l.factories.Lookup(yc.Constructor)
		if !ok {
			return nil, fmt.Errorf("component %q references unknown factory %q (registered: %v)",
				name, yc.Constructor, l.factories.Names())
		}
		def.Constructor = ctor
	}

	for i, arg := range yc.Args {
		value, err := l.buildValue(fmt.Sprintf("%s args[%d]", name, i), arg)
		if err != nil {
			return nil, err
		}
		def.Args = append(def.Args, value)
	}

	fields := make([]string, 0, len(yc.Properties))
	for field := range yc.Properties {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, err := l.buildValue(fmt.Sprintf("%s property %s", name, field), yc.Properties[field])
		if err != nil {
			return nil, err
		}
		def.Properties = append(def.Properties, Property{Field: field, Value: value})
	}

	return def, nil
}

func (l *Loader) buildValue(where string, yv yamlValue) (Value, error) {
	forms := 0
	if yv.Value != nil {
		forms++
	}
	if yv.Ref != "" {
		forms++
	}
	if yv.Env != "" {
		forms++
	}
	if yv.Component != nil {
		forms++
	}
	if forms != 1 {
		return Value{}, fmt.Errorf("%s: exactly one of value, ref, env, component is required", where)
	}

	switch {
	case yv.Ref != "":
		return Ref(yv.Ref), nil
	case yv.Env != "":
		return Placeholder(yv.Env), nil
	case yv.Component != nil:
		nested, err := l.buildDefinition("", *yv.Component)
		if err != nil {
			return Value{}, err
		}
		if nested.Constructor == nil {
			return Value{}, fmt.Errorf("%s: nested component needs a constructor", where)
		}
		return Nested(nested), nil
	default:
		return Literal(*yv.Value), nil
	}
}

// ContainerConfig carries container option defaults, loadable from YAML
// with environment overrides.
type ContainerConfig struct {
	AllowCircularReferences bool           `yaml:"allowCircularReferences" env:"VESSEL_ALLOW_CIRCULAR" env-default:"false"`
	DefinitionOverriding    bool           `yaml:"definitionOverriding" env:"VESSEL_OVERRIDING" env-default:"false"`
	Logging                 logging.Config `yaml:"logging"`
}

// LoadContainerConfig reads configuration from a YAML file plus the
// environment. An empty path reads the environment only.
func LoadContainerConfig(path string) (ContainerConfig, error) {
	var cfg ContainerConfig
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, LoadError{Source: "<env>", Cause: err}
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, LoadError{Source: path, Cause: err}
	}
	return cfg, nil
}

// Options translates the config into container options.
func (cfg ContainerConfig) Options() []ContainerOption {
	return []ContainerOption{
		WithLogger(logging.New(cfg.Logging)),
		AllowCircularReferences(cfg.AllowCircularReferences),
		WithDefinitionOverriding(cfg.DefinitionOverriding),
	}
}
