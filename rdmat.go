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

// Package rdmat reads, writes, decompiles and synthesizes
// compiled-material containers.
//
// The package is a thin convenience layer over the
// subsystem packages:
//
//   - matfmt implements the bit-exact container codec;
//   - decompile reconstructs conditional shader source
//     from compiled variants;
//   - compile builds containers from shader manifests via
//     an external compiler behind the dxc adapters;
//   - qmc minimizes the boolean expressions the
//     decompiler synthesizes.
//
// Typical use:
//
//	m, err := rdmat.Read(buf)
//	res, err := rdmat.DecompileStage(m, "Transparent",
//		matfmt.ESSL310, matfmt.StageFragment, decompile.Options{Preprocess: true})
package rdmat

import (
	"fmt"

	"github.com/rdtools/rdmat/decompile"
	"github.com/rdtools/rdmat/matfmt"
)

// Read parses container bytes into a Material.
func Read(buf []byte) (*matfmt.Material, error) {
	return matfmt.Decode(buf)
}

// Write serializes a Material into container bytes.
func Write(m *matfmt.Material) ([]byte, error) {
	return matfmt.Encode(m)
}

// FindPass returns the named pass of m.
func FindPass(m *matfmt.Material, name string) (*matfmt.Pass, error) {
	for i := range m.Passes {
		if m.Passes[i].Name == name {
			return &m.Passes[i], nil
		}
	}
	return nil, fmt.Errorf("rdmat: material %q has no pass %q", m.Name, name)
}

// flagMap converts a variant's ordered flag list to the
// decompiler's map form.
func flagMap(flags []matfmt.Flag) map[string]string {
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		out[f.Name] = f.Value
	}
	return out
}

// DecompileStage reconstructs one source from every
// variant of the named pass that carries a shader for the
// given platform and stage.
func DecompileStage(m *matfmt.Material, passName string, platform matfmt.Platform, stage matfmt.Stage, opts decompile.Options) (*decompile.Result, error) {
	pass, err := FindPass(m, passName)
	if err != nil {
		return nil, err
	}
	var variants []decompile.Variant
	for vi := range pass.Variants {
		v := &pass.Variants[vi]
		for si := range v.Shaders {
			sd := &v.Shaders[si]
			if sd.Platform != platform || sd.Stage != stage {
				continue
			}
			variants = append(variants, decompile.Variant{
				Code:  string(sd.Shader.Bytes),
				Flags: flagMap(v.Flags),
			})
		}
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("rdmat: pass %q has no %s/%s shaders",
			passName, platform, stage)
	}
	return decompile.Decompile(variants, opts)
}

// RestorePassVaryings rebuilds the varying.def text for
// the named pass from the shader-input metadata of all its
// variants.
func RestorePassVaryings(m *matfmt.Material, passName string, opts decompile.Options) (*decompile.Result, error) {
	pass, err := FindPass(m, passName)
	if err != nil {
		return nil, err
	}
	perPlatform := make(map[matfmt.Platform][]decompile.VaryingInput)
	seen := make(map[string]bool)
	for vi := range pass.Variants {
		v := &pass.Variants[vi]
		for si := range v.Shaders {
			sd := &v.Shaders[si]
			for ii := range sd.Inputs {
				key := fmt.Sprintf("%d|%d|%s", sd.Platform, sd.Stage, sd.Inputs[ii].Name)
				if seen[key] {
					continue
				}
				seen[key] = true
				perPlatform[sd.Platform] = append(perPlatform[sd.Platform],
					decompile.VaryingInput{Input: sd.Inputs[ii], Stage: sd.Stage})
			}
		}
	}
	return decompile.RestoreVaryings(perPlatform, opts)
}
