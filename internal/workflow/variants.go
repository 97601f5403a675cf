package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Built-in variant names.
const (
	VariantFix       = "fix"
	VariantAudit     = "audit"
	VariantFramework = "framework"
)

//go:embed variants.yaml
var variantsYAML []byte

// Variant is a named, fixed stage list.
type Variant struct {
	Name   string
	Title  string
	Stages []Stage
}

type variantsFile struct {
	Variants []struct {
		Name   string `yaml:"name"`
		Title  string `yaml:"title"`
		Stages []struct {
			Title string `yaml:"title"`
			Guard string `yaml:"guard"`
		} `yaml:"stages"`
	} `yaml:"variants"`
}

// ParseVariants decodes a variants document. Every stage must reference a
// registered guard and every variant needs at least one stage.
func ParseVariants(data []byte) ([]Variant, error) {
	var file variantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse variants: %w", err)
	}
	if len(file.Variants) == 0 {
		return nil, errors.New("no variants defined")
	}

	seen := make(map[string]bool)
	variants := make([]Variant, 0, len(file.Variants))
	for _, fv := range file.Variants {
		if fv.Name == "" {
			return nil, errors.New("variant without a name")
		}
		if seen[fv.Name] {
			return nil, fmt.Errorf("duplicate variant %q", fv.Name)
		}
		seen[fv.Name] = true
		if len(fv.Stages) == 0 {
			return nil, fmt.Errorf("variant %q has no stages", fv.Name)
		}

		v := Variant{Name: fv.Name, Title: fv.Title}
		for i, fs := range fv.Stages {
			st, err := newStage(i, fs.Title, fs.Guard)
			if err != nil {
				return nil, fmt.Errorf("variant %q: %w", fv.Name, err)
			}
			v.Stages = append(v.Stages, st)
		}
		variants = append(variants, v)
	}
	return variants, nil
}

var builtinVariants = sync.OnceValues(func() ([]Variant, error) {
	return ParseVariants(variantsYAML)
})

// Variants returns the built-in variants in declaration order.
func Variants() ([]Variant, error) {
	return builtinVariants()
}

// LookupVariant returns the built-in variant with the given name.
func LookupVariant(name string) (Variant, error) {
	variants, err := builtinVariants()
	if err != nil {
		return Variant{}, err
	}
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("unknown workflow variant %q", name)
}
