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

// Package compile builds compiled-material containers from
// shader manifests: it resolves per-shader defines,
// invokes an external HLSL compiler through the dxc
// adapter interface, wraps the object bytes in back-end
// shader wrappers and assembles a version-25 material.
package compile

import (
	"context"
	"fmt"
	"log"

	"github.com/dchest/siphash"

	"github.com/rdtools/rdmat/dxc"
	"github.com/rdtools/rdmat/matfmt"
)

// Options are the user-controlled compilation settings.
type Options struct {
	// Platform is the shader back-end target recorded in
	// the container.
	Platform matfmt.Platform
	// UserDefines are global defines; RegisterDefines are
	// the s_<Buffer>_REG bindings extracted from a base
	// material. Per-shader manifest defines override
	// both; register defines override user defines.
	UserDefines     map[string]string
	RegisterDefines map[string]string
	// IncludePaths are passed to the compiler verbatim.
	IncludePaths []string
	// AdditionalArgs precede the manifest's and entry's
	// compiler options.
	AdditionalArgs []string
}

// CompilationError carries the compiler's full diagnostics
// for a failed shader. The pipeline aborts the manifest on
// the first one.
type CompilationError struct {
	FileName    string
	Diagnostics string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile: %s: compilation failed:\n%s", e.FileName, e.Diagnostics)
}

// Pipeline compiles manifests into materials.
type Pipeline struct {
	// Source resolves shader file names.
	Source Source
	// Compiler is the external compiler adapter. The
	// pipeline serializes nothing itself; adapters
	// serialize their own non-reentrant internals.
	Compiler dxc.Compiler
	// Logger, if set, receives one line per shader.
	Logger *log.Logger
}

func (p *Pipeline) logf(f string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(f, args...)
	}
}

// siphash key for shader content hashes recorded in
// shader definitions
const (
	hashK0 = 0x7264_6d61_7473_6866 // "rdmatshf"
	hashK1 = 0x636f_6e74_656e_7431 // "content1"
)

// Compile builds the material described by m. Shaders are
// compiled in manifest order; the result is a version-25
// container with one pass holding one all-platform
// variant.
func (p *Pipeline) Compile(ctx context.Context, m *Manifest, opts *Options) (*matfmt.Material, error) {
	if opts == nil {
		opts = &Options{}
	}
	shaders := make([]matfmt.ShaderDefinition, 0, len(m.Shaders))
	for i := range m.Shaders {
		sd, err := p.compileOne(ctx, m, &m.Shaders[i], opts)
		if err != nil {
			return nil, err
		}
		shaders = append(shaders, *sd)
	}

	mat := &matfmt.Material{
		Version: matfmt.MaxVersion,
		Name:    m.MaterialName,
		Passes: []matfmt.Pass{
			{
				Name:               m.PassName,
				SupportedPlatforms: matfmt.AllPlatforms(),
				DefaultBlendMode:   matfmt.BlendUnspecified,
				Variants: []matfmt.Variant{
					{IsSupported: true, Shaders: shaders},
				},
			},
		},
	}
	return mat, nil
}

// CompileBytes is Compile followed by container encoding.
func (p *Pipeline) CompileBytes(ctx context.Context, m *Manifest, opts *Options) ([]byte, error) {
	mat, err := p.Compile(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	return matfmt.Encode(mat)
}

func (p *Pipeline) compileOne(ctx context.Context, m *Manifest, entry *ShaderEntry, opts *Options) (*matfmt.ShaderDefinition, error) {
	stage, err := matfmt.StageFromName(entry.Stage)
	if err != nil {
		return nil, &SettingsError{Msg: fmt.Sprintf("shader %q: bad stage %q", entry.FileName, entry.Stage)}
	}
	source, err := p.Source.Load(entry.FileName)
	if err != nil {
		return nil, err
	}

	defines := mergeDefines(opts.UserDefines, opts.RegisterDefines, entry.Defines)
	args := make([]string, 0,
		len(opts.AdditionalArgs)+len(m.CompilerOptions)+len(entry.CompilerOptions))
	args = append(args, opts.AdditionalArgs...)
	args = append(args, m.CompilerOptions...)
	args = append(args, entry.CompilerOptions...)

	res, err := p.Compiler.Compile(ctx, &dxc.Job{
		Source:        source,
		EntryPoint:    entry.EntryPoint,
		TargetProfile: entry.TargetProfile,
		Defines:       defines,
		IncludePaths:  opts.IncludePaths,
		Args:          args,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK {
		p.logf("%s: compilation failed", entry.FileName)
		return nil, &CompilationError{FileName: entry.FileName, Diagnostics: res.Diagnostics}
	}
	p.logf("%s: %d object bytes", entry.FileName, len(res.Object))

	return &matfmt.ShaderDefinition{
		Stage:    stage,
		Platform: opts.Platform,
		Hash:     siphash.Hash(hashK0, hashK1, res.Object),
		Shader: matfmt.BGFXShader{
			Stage:    stage,
			Bytes:    res.Object,
			AttrSize: -1,
		},
	}, nil
}

// mergeDefines merges define maps left to right with the
// rightmost value winning on collisions.
func mergeDefines(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
