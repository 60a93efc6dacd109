package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	CompilerConfig struct {
		DarkClass       string              `yaml:"dark_class" validate:"required,excludesall= .:#[]"`
		ClassAttributes []string            `yaml:"class_attributes" validate:"min=1,dive,required,excludesall= "`
		Breakpoints     map[string]string   `yaml:"breakpoints"`
		Properties      map[string][]string `yaml:"properties"`
	}

	InputConfig struct {
		Extensions []string `yaml:"extensions" validate:"min=1,dive,startswith=."`
	}

	OutputConfig struct {
		Header bool `yaml:"header"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Compiler  CompilerConfig `yaml:"compiler"`
		Input     InputConfig    `yaml:"input"`
		Output    OutputConfig   `yaml:"output"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

var (
	breakpointName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	breakpointSize = regexp.MustCompile(`^\d+(\.\d+)?(px|em|rem)$`)
	propertyKey    = regexp.MustCompile(`^[a-z0-9-]+$`)
	propertyName   = regexp.MustCompile(`^-?-?[a-zA-Z][a-zA-Z0-9-]*$`)

	// variant names which could never be used as breakpoints
	reservedVariants = map[string]bool{
		"dark": true, "hover": true, "focus": true, "active": true, "visited": true,
		"disabled": true, "first": true, "last": true, "odd": true, "even": true,
		"before": true, "after": true, "placeholder": true, "first-child": true, "last-child": true,
	}
)

// checkCompiler validates map content which cannot be expressed with tags.
func checkCompiler(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	for name, size := range cfg.Compiler.Breakpoints {
		if !breakpointName.MatchString(name) || reservedVariants[name] {
			sl.ReportError(cfg.Compiler.Breakpoints, "breakpoints", "Breakpoints", "breakpoint_name", name)
		}
		if !breakpointSize.MatchString(size) {
			sl.ReportError(cfg.Compiler.Breakpoints, "breakpoints", "Breakpoints", "breakpoint_size", size)
		}
	}
	for key, props := range cfg.Compiler.Properties {
		if !propertyKey.MatchString(key) {
			sl.ReportError(cfg.Compiler.Properties, "properties", "Properties", "property_key", key)
		}
		if len(props) == 0 {
			sl.ReportError(cfg.Compiler.Properties, "properties", "Properties", "property_list", key)
		}
		for _, p := range props {
			if !propertyName.MatchString(p) {
				sl.ReportError(cfg.Compiler.Properties, "properties", "Properties", "property_name", p)
			}
		}
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if !process {
		return cfg, nil
	}
	if err := gencfg.Sanitize(cfg); err != nil {
		return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
	}
	if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(checkCompiler)); err != nil {
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation. Maps (breakpoints, properties) from
// the file are merged into defaults, lists replace them.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
