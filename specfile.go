package modlog

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// SpecFile is the externally editable, persisted form of a
// LogSpecification: semantically equivalent to the directive mini-language
// but written as a YAML document so an operator can reconfigure a running
// process by saving the file.
//
//	default: info
//	modules:
//	  server.db: debug
//	  server.http: warn
//	filter: "slow query"
//	duplicate: error
//	rotation:
//	  max_bytes: 10485760
//	  daily: true
//	  retention: 7
type SpecFile struct {
	Default   string            `yaml:"default"`
	Modules   map[string]string `yaml:"modules,omitempty"`
	Filter    string            `yaml:"filter,omitempty"`
	Duplicate string            `yaml:"duplicate,omitempty"`
	Rotation  *RotationOverride `yaml:"rotation,omitempty"`
}

// RotationOverride carries the rotation parameters a specfile may adjust
// on the sinks it governs. Negative values leave the current setting
// untouched.
type RotationOverride struct {
	MaxBytes  int64 `yaml:"max_bytes"`
	Daily     bool  `yaml:"daily"`
	Retention int   `yaml:"retention"`
}

// ParseSpecFile decodes a specfile document. Decoding is strict: unknown
// fields are rejected so a typo cannot silently disable an override.
func ParseSpecFile(data []byte) (*SpecFile, error) {
	var f SpecFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &ConfigError{Reason: "specfile is not valid YAML: " + err.Error()}
	}
	return &f, nil
}

// LoadSpecFile reads and decodes the specfile at path.
func LoadSpecFile(path string) (*SpecFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSpecFile(data)
}

// Specification converts the document into an immutable LogSpecification.
// All-or-nothing: any bad level name or filter pattern rejects the whole
// document with a ConfigError.
func (f *SpecFile) Specification() (*LogSpecification, error) {
	defaultLevel := LevelOff
	if f.Default != emptyString {
		lvl, err := ParseLevel(f.Default)
		if err != nil {
			return nil, &ConfigError{Token: f.Default, Reason: "bad default level"}
		}
		defaultLevel = lvl
	}

	duplicate := LevelOff
	if f.Duplicate != emptyString {
		lvl, err := ParseLevel(f.Duplicate)
		if err != nil {
			return nil, &ConfigError{Token: f.Duplicate, Reason: "bad duplication threshold"}
		}
		duplicate = lvl
	}

	var filter *regexp.Regexp
	if f.Filter != emptyString {
		re, err := regexp.Compile(f.Filter)
		if err != nil {
			return nil, &ConfigError{Token: f.Filter, Reason: "invalid message filter: " + err.Error()}
		}
		filter = re
	}

	// Map keys are unique, so equal-specificity ties cannot arise from a
	// specfile; sort for a deterministic directive order anyway.
	names := make([]string, 0, len(f.Modules))
	for name := range f.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	directives := make([]Directive, 0, len(names))
	for _, name := range names {
		lvl, err := ParseLevel(f.Modules[name])
		if err != nil {
			return nil, &ConfigError{Token: name + "=" + f.Modules[name], Reason: "bad module level"}
		}
		directives = append(directives, Directive{Module: name, Level: lvl})
	}

	return NewSpecification(defaultLevel, directives, filter, duplicate)
}

// SpecFileFrom renders a specification as a specfile document, used to
// seed a missing specfile with the currently active policy.
func SpecFileFrom(spec *LogSpecification) *SpecFile {
	f := &SpecFile{Default: spec.DefaultLevel().String()}
	if dirs := spec.Directives(); len(dirs) > 0 {
		f.Modules = make(map[string]string, len(dirs))
		for _, d := range dirs {
			f.Modules[d.Module] = d.Level.String()
		}
	}
	f.Filter = spec.FilterPattern()
	if spec.DuplicateLevel() != LevelOff {
		f.Duplicate = spec.DuplicateLevel().String()
	}
	return f
}

// Save writes the document to path.
func (f *SpecFile) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding specfile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
