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

package decompile

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/rdtools/rdmat/matfmt"
)

// VaryingInput is one shader input collected for varying
// restoration, tagged with the stage that declared it:
// vertex-stage inputs are attributes, fragment-stage
// inputs are varyings.
type VaryingInput struct {
	Input matfmt.ShaderInput
	Stage matfmt.Stage
}

// shaderLang maps each platform to the BGFX_SHADER_LANGUAGE
// macro and comparison value used in varying definitions.
var shaderLang = map[matfmt.Platform]struct {
	lang    string
	version int
}{
	matfmt.Direct3DSM40: {"HLSL", 400},
	matfmt.Direct3DSM50: {"HLSL", 500},
	matfmt.Direct3DSM60: {"HLSL", 600},
	matfmt.Direct3DSM65: {"HLSL", 650},
	matfmt.Direct3DXB1:  {"HLSL", 500},
	matfmt.Direct3DXBX:  {"HLSL", 600},
	matfmt.GLSL120:      {"GLSL", 120},
	matfmt.GLSL430:      {"GLSL", 430},
	matfmt.ESSL100:      {"GLSL", 100},
	matfmt.ESSL300:      {"GLSL", 300},
	matfmt.ESSL310:      {"GLSL", 310},
	matfmt.Metal:        {"METAL", 1},
	matfmt.Vulkan:       {"SPIRV", 1},
	matfmt.Nvn:          {"NVN", 1},
	matfmt.Pssl:         {"PSSL", 1},
}

// RestoreVaryings rebuilds a varying.def text from the
// shader inputs collected across one pass. Per-platform
// differences are folded into #if BGFX_SHADER_LANGUAGE
// blocks by running the per-platform texts through the
// decompiler with comment stripping disabled.
func RestoreVaryings(perPlatform map[matfmt.Platform][]VaryingInput, opts Options) (*Result, error) {
	if len(perPlatform) == 0 {
		return &Result{}, nil
	}
	platforms := maps.Keys(perPlatform)
	slices.Sort(platforms)

	variants := make([]Variant, 0, len(platforms))
	for _, p := range platforms {
		variants = append(variants, Variant{
			Code:  varyingText(perPlatform[p]),
			Flags: map[string]string{"platform": p.String()},
		})
	}

	opts.Preprocess = false
	opts.Postprocess = false
	res, err := Decompile(variants, opts)
	if err != nil {
		return nil, err
	}
	res.Code = replacePlatformConditionals(res.Code, platforms)
	return res, nil
}

// varyingText formats one platform's inputs: one line per
// input, grouped by a_/i_/v_ prefix, with the type and
// name columns aligned within each group.
func varyingText(inputs []VaryingInput) string {
	type entry struct {
		head, name, sem string
		group           int
	}
	entries := make([]entry, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i].Input
		var quals []string
		if in.Precision != nil {
			quals = append(quals, strings.ToLower(in.Precision.String()))
		}
		if in.Interpolation != nil {
			quals = append(quals, strings.ToLower(in.Interpolation.String()))
		}
		quals = append(quals, in.Type.String())
		name := remapName(inputs[i])
		group := 2
		switch name[0] {
		case 'a':
			group = 0
		case 'i':
			group = 1
		}
		entries = append(entries, entry{
			head:  strings.Join(quals, " "),
			name:  name,
			sem:   semanticString(in.Semantic),
			group: group,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].group != entries[j].group {
			return entries[i].group < entries[j].group
		}
		return entries[i].name < entries[j].name
	})

	var sb strings.Builder
	for g := 0; g <= 2; g++ {
		headW, nameW := 0, 0
		for _, e := range entries {
			if e.group != g {
				continue
			}
			if len(e.head) > headW {
				headW = len(e.head)
			}
			if len(e.name) > nameW {
				nameW = len(e.name)
			}
		}
		for _, e := range entries {
			if e.group != g {
				continue
			}
			fmt.Fprintf(&sb, "%-*s %-*s : %s;\n", headW, e.head, nameW, e.name, e.sem)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// remapName derives the canonical varying name: instance
// data is i_-prefixed, vertex attributes a_-prefixed and
// fragment varyings v_-prefixed. Names that already carry
// a known prefix are kept.
func remapName(in VaryingInput) string {
	name := in.Input.Name
	for _, p := range []string{"a_", "i_", "v_"} {
		if strings.HasPrefix(name, p) {
			return name
		}
	}
	prefix := "v_"
	if in.Input.PerInstance {
		prefix = "i_"
	} else if in.Stage == matfmt.StageVertex {
		prefix = "a_"
	}
	return prefix + name
}

func semanticString(s matfmt.Semantic) string {
	base := s.Index.String()
	switch s.Index {
	case matfmt.SemanticTexcoord, matfmt.SemanticColor:
		return fmt.Sprintf("%s%d", base, s.SubIndex)
	}
	if s.SubIndex != 0 {
		return fmt.Sprintf("%s%d", base, s.SubIndex)
	}
	return base
}

// replacePlatformConditionals rewrites the synthesized
// PLATFORM_* macro conditionals into shader-language
// comparisons.
func replacePlatformConditionals(code string, platforms []matfmt.Platform) string {
	for _, p := range platforms {
		sl, ok := shaderLang[p]
		if !ok {
			continue
		}
		macro := MacroName("platform", p.String())
		cmp := fmt.Sprintf("BGFX_SHADER_LANGUAGE_%s == %d", sl.lang, sl.version)
		code = strings.ReplaceAll(code, "#ifdef "+macro, "#if "+cmp)
		code = strings.ReplaceAll(code, "#ifndef "+macro,
			fmt.Sprintf("#if BGFX_SHADER_LANGUAGE_%s != %d", sl.lang, sl.version))
		code = strings.ReplaceAll(code, "defined("+macro+")", "("+cmp+")")
	}
	return code
}
