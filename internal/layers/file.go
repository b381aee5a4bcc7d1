package layers

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a policy.
//
//	shared: config
//	layers:
//	  core: []
//	  memory: [core]
type File struct {
	Shared string              `yaml:"shared" validate:"required,layername"`
	Layers map[string][]string `yaml:"layers" validate:"required,min=1,dive,keys,layername,endkeys,dive,layername"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("layername", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
	return v
}

// LoadFile reads a YAML policy from path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return f.Policy()
}

// Policy validates f and builds the frozen policy from it.
func (f *File) Policy() (*Policy, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	names := make([]string, 0, len(f.Layers))
	for name := range f.Layers {
		names = append(names, name)
	}
	sort.Strings(names)

	table := make(map[Layer][]Layer, len(f.Layers))
	for _, name := range names {
		targets := make([]Layer, 0, len(f.Layers[name]))
		for _, t := range f.Layers[name] {
			if _, ok := f.Layers[t]; !ok && t != f.Shared {
				return nil, fmt.Errorf("invalid policy: layer %q allows unknown layer %q", name, t)
			}
			targets = append(targets, Layer(t))
		}
		table[Layer(name)] = targets
	}

	return New(table, Layer(f.Shared)), nil
}
