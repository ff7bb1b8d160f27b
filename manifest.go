package appshell

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// Manifest is the application's declared identity and capabilities.
type Manifest struct {
	Name               string              `json:"name" yaml:"name"`
	Version            string              `json:"version" yaml:"version"`
	BackgroundScripts  []string            `json:"background_scripts" yaml:"background_scripts"`
	ApplicationPlugins []PluginDeclaration `json:"-" yaml:"-"`
	NativeServices     []string            `json:"native_services" yaml:"native_services"`

	// PackageFilePath is the on-disk location of the package the
	// manifest was read from. Filled in by LoadPackage.
	PackageFilePath string `json:"-" yaml:"-"`
}

// PluginDeclaration is one entry of the manifest's plugin list.
type PluginDeclaration struct {
	Name          string
	Code          string // script asset path or native module reference
	RunInRenderer bool
	Settings      map[string]any
}

// IsScript reports whether the declaration's code is a script asset.
func (d PluginDeclaration) IsScript() bool {
	ext := strings.ToLower(filepath.Ext(d.Code))
	return ext == ".js" || ext == ".mjs"
}

// InProcess reports whether the plugin runs inside the host process.
// Script assets and plugins flagged for the renderer are forwarded to
// render processes instead.
func (d PluginDeclaration) InProcess() bool {
	return !d.IsScript() && !d.RunInRenderer
}

// manifestDoc is the wire shape; plugin entries are kept loose so that
// hand-written manifests with stringly-typed fields still decode.
type manifestDoc struct {
	Name              string           `json:"name" yaml:"name"`
	Version           string           `json:"version" yaml:"version"`
	BackgroundScripts []string         `json:"background_scripts" yaml:"background_scripts"`
	Plugins           []map[string]any `json:"plugins" yaml:"plugins"`
	NativeServices    []string         `json:"native_services" yaml:"native_services"`
}

// ParseManifest decodes manifest bytes. Format is chosen by the file
// extension: .json, .yaml or .yml.
func ParseManifest(data []byte, filename string) (*Manifest, error) {
	var doc manifestDoc
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrManifestUnsupported, filename)
	}

	if doc.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrManifestNameMissing, filename)
	}

	manifest := &Manifest{
		Name:              doc.Name,
		Version:           doc.Version,
		BackgroundScripts: doc.BackgroundScripts,
		NativeServices:    doc.NativeServices,
	}
	for i, raw := range doc.Plugins {
		decl, err := normalizeDeclaration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid plugin declaration %d in %s: %w", i, filename, err)
		}
		manifest.ApplicationPlugins = append(manifest.ApplicationPlugins, decl)
	}
	return manifest, nil
}

// normalizeDeclaration coerces a loose plugin entry into a typed
// declaration. Scalar fields may arrive as strings (common in YAML
// written by hand), so values are converted by target type.
func normalizeDeclaration(raw map[string]any) (PluginDeclaration, error) {
	var decl PluginDeclaration

	name, err := coerceString(raw["name"])
	if err != nil {
		return decl, err
	}
	if name == "" {
		return decl, ErrPluginNameEmpty
	}
	decl.Name = name

	if decl.Code, err = coerceString(raw["code"]); err != nil {
		return decl, err
	}
	if decl.RunInRenderer, err = coerceBool(raw["run_in_renderer"]); err != nil {
		return decl, err
	}
	if settings, ok := raw["settings"].(map[string]any); ok {
		decl.Settings = settings
	}
	return decl, nil
}

func coerceString(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func coerceBool(v any) (bool, error) {
	switch value := v.(type) {
	case nil:
		return false, nil
	case bool:
		return value, nil
	case string:
		converted, err := cast.FromType(value, reflect.TypeOf(false))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool: %w", value, err)
		}
		return converted.(bool), nil
	default:
		converted, err := cast.FromType(fmt.Sprintf("%v", value), reflect.TypeOf(false))
		if err != nil {
			return false, fmt.Errorf("cannot convert %v to bool: %w", value, err)
		}
		return converted.(bool), nil
	}
}

// AppPackage is an unpacked application package on disk.
type AppPackage struct {
	// Dir is the package root; packaged content is served from here.
	Dir string

	// Manifest is the parsed manifest, nil when loading failed.
	Manifest *Manifest
}

// manifestCandidates are probed in order inside a package directory.
var manifestCandidates = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

// LoadPackage reads the manifest out of a package directory.
func LoadPackage(dir string) (*AppPackage, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPackageMissing, dir)
	}
	for _, candidate := range manifestCandidates {
		path := filepath.Join(dir, candidate)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		manifest, err := ParseManifest(data, path)
		if err != nil {
			return nil, err
		}
		manifest.PackageFilePath = path
		return &AppPackage{Dir: dir, Manifest: manifest}, nil
	}
	return nil, fmt.Errorf("%w: no manifest in %s", ErrManifestMissing, dir)
}
