// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package compile

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/rdtools/rdmat/matfmt"
)

// ShaderEntry is one shader of a material manifest.
type ShaderEntry struct {
	// Name labels the shader within the material.
	Name string `json:"name"`
	// FileName is resolved through the shader-source
	// provider.
	FileName string `json:"fileName"`
	// Stage is the shader stage name ("Vertex",
	// "Fragment", "Compute").
	Stage string `json:"stage"`
	// EntryPoint and TargetProfile are passed to the
	// external compiler.
	EntryPoint    string `json:"entryPoint"`
	TargetProfile string `json:"targetProfile"`
	// Defines are per-shader preprocessor defines; they
	// override user and register defines.
	Defines map[string]string `json:"defines,omitempty"`
	// CompilerOptions are extra arguments appended after
	// the manifest-level options.
	CompilerOptions []string `json:"compilerOptions,omitempty"`
}

// Manifest describes how to build one material pass.
type Manifest struct {
	MaterialName string        `json:"materialName"`
	PassName     string        `json:"passName"`
	Shaders      []ShaderEntry `json:"shaders"`
	// CompilerOptions apply to every shader in the
	// manifest.
	CompilerOptions []string `json:"compilerOptions,omitempty"`
}

// SettingsError indicates an invalid manifest or user
// settings value.
type SettingsError struct {
	Msg string
}

func (e *SettingsError) Error() string { return "compile: " + e.Msg }

// just pick an upper limit to prevent DoS
const maxManifestSize = 1024 * 1024

// DecodeManifest decodes a manifest from src. The ext
// (".json", ".yaml", ".yml") selects the encoding; YAML is
// converted through sigs.k8s.io/yaml so both share the
// JSON field tags.
func DecodeManifest(src io.Reader, ext string) (*Manifest, error) {
	buf, err := io.ReadAll(io.LimitReader(src, maxManifestSize+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxManifestSize {
		return nil, &SettingsError{Msg: fmt.Sprintf("manifest beyond %d byte limit", maxManifestSize)}
	}
	m := new(Manifest)
	switch strings.ToLower(ext) {
	case "", ".json":
		err = json.Unmarshal(buf, m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, m)
	default:
		return nil, &SettingsError{Msg: "unknown manifest extension " + ext}
	}
	if err != nil {
		return nil, &SettingsError{Msg: err.Error()}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	if m.MaterialName == "" {
		return &SettingsError{Msg: "manifest has no materialName"}
	}
	if m.PassName == "" {
		return &SettingsError{Msg: "manifest has no passName"}
	}
	if len(m.Shaders) == 0 {
		return &SettingsError{Msg: "manifest has no shaders"}
	}
	for i := range m.Shaders {
		e := &m.Shaders[i]
		if e.FileName == "" {
			return &SettingsError{Msg: fmt.Sprintf("shader %d has no fileName", i)}
		}
		if _, err := matfmt.StageFromName(e.Stage); err != nil {
			return &SettingsError{Msg: fmt.Sprintf("shader %q: bad stage %q", e.FileName, e.Stage)}
		}
		if e.EntryPoint == "" || e.TargetProfile == "" {
			return &SettingsError{Msg: fmt.Sprintf("shader %q: entryPoint and targetProfile are required", e.FileName)}
		}
	}
	return nil
}
