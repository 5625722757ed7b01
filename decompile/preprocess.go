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
	"regexp"
	"strings"
)

// The GLSL back-end rewrite normalizes compiled variant
// output back towards portable shader source: generated
// uniform declarations, preprocessor residue and platform
// builtins are removed or rewritten so that variants diff
// cleanly.

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blankRunRe     = regexp.MustCompile(`\n{2,}`)

	vertexDetectRe = regexp.MustCompile(`(?m)^#define varying out$`)

	uUniformRe = regexp.MustCompile(`(?m)^[ \t]*uniform\s+\w+\s+u_\w+(?:\[\d+\])?\s*;[ \t]*\n?`)
	outDeclRe  = regexp.MustCompile(`(?m)^[ \t]*out\s+[^;\n]+;[ \t]*\n?`)

	defineRe    = regexp.MustCompile(`(?m)^#define[^\n]*\n?`)
	ifLineRe    = regexp.MustCompile(`(?m)^#if[^\n]*#endif[^\n]*\n?`)
	ifBlockRe   = regexp.MustCompile(`(?ms)^#if[^\n]*$.*?^#endif[^\n]*\n?`)
	extensionRe = regexp.MustCompile(`(?m)^#extension[^\n]*\n?`)
	versionRe   = regexp.MustCompile(`(?m)^#version[^\n]*\n?`)

	varyingDeclRe   = regexp.MustCompile(`(?m)^[ \t]*varying\s+(?:(?:highp|mediump|lowp|flat|smooth|noperspective|centroid)\s+)*\w+\s+(\w+)\s*;`)
	attributeDeclRe = regexp.MustCompile(`(?m)^[ \t]*attribute\s+(?:(?:highp|mediump|lowp)\s+)*\w+\s+(\w+)\s*;`)

	samplerDeclRe = regexp.MustCompile(`(?m)^[ \t]*uniform\s+(?:(?:highp|mediump|lowp)\s+)?(\w+)\s+(\w+)\s*;`)

	ssboRe = regexp.MustCompile(`(?ms)^[ \t]*layout\s*\(\s*std430[^)]*\)\s*(readonly|writeonly)?\s*buffer\s+(\w+)\s*\{\s*(\w+)[^}]*\}[^;]*;`)

	imageRe = regexp.MustCompile(`(?m)^[ \t]*layout\s*\(\s*(\w+)[^)]*\)\s*(readonly|writeonly)?\s*uniform\s+(?:highp\s+)?(u?)image(2DArray|2D|3D)\s+(\w+)\s*;`)

	localSizeRe = regexp.MustCompile(`(?m)^[ \t]*layout\s*\(\s*local_size_x\s*=\s*(\d+)\s*,\s*local_size_y\s*=\s*(\d+)\s*,\s*local_size_z\s*=\s*(\d+)\s*\)\s*in\s*;`)
)

// samplerMacros maps GLSL sampler types to their AUTOREG
// declaration macros.
var samplerMacros = map[string]string{
	"sampler2D":            "SAMPLER2D_AUTOREG",
	"sampler2DArray":       "SAMPLER2DARRAY_AUTOREG",
	"sampler2DShadow":      "SAMPLER2DSHADOW_AUTOREG",
	"sampler2DArrayShadow": "SAMPLER2DARRAYSHADOW_AUTOREG",
	"sampler3D":            "SAMPLER3D_AUTOREG",
	"samplerCube":          "SAMPLERCUBE_AUTOREG",
	"samplerCubeArray":     "SAMPLERCUBEARRAY_AUTOREG",
	"isampler2D":           "ISAMPLER2D_AUTOREG",
	"usampler2D":           "USAMPLER2D_AUTOREG",
	"isampler2DArray":      "ISAMPLER2DARRAY_AUTOREG",
	"usampler2DArray":      "USAMPLER2DARRAY_AUTOREG",
	"isampler3D":           "ISAMPLER3D_AUTOREG",
	"usampler3D":           "USAMPLER3D_AUTOREG",
	"usamplerCube":         "USAMPLERCUBE_AUTOREG",
}

// preprocess strips comments (optionally) and applies the
// back-end rewrite table in order.
func preprocess(code string, stripComments bool) string {
	if stripComments {
		code = blockCommentRe.ReplaceAllString(code, "")
		code = lineCommentRe.ReplaceAllString(code, "")
		code = blankRunRe.ReplaceAllString(code, "\n")
		code = collapseBlankish(code)
	}

	// stage detection must precede #define removal
	isVertex := vertexDetectRe.MatchString(code)

	code = uUniformRe.ReplaceAllString(code, "")
	code = strings.ReplaceAll(code, "bgfx_FragColor", "gl_FragColor")
	code = strings.ReplaceAll(code, "bgfx_FragData", "gl_FragData")
	code = outDeclRe.ReplaceAllString(code, "")
	code = defineRe.ReplaceAllString(code, "")
	code = ifLineRe.ReplaceAllString(code, "")
	code = ifBlockRe.ReplaceAllString(code, "")
	code = extensionRe.ReplaceAllString(code, "")
	code = versionRe.ReplaceAllString(code, "")

	if isVertex {
		code = attributeDeclRe.ReplaceAllString(code, "$$input $1")
		code = varyingDeclRe.ReplaceAllString(code, "$$output $1")
	} else {
		code = varyingDeclRe.ReplaceAllString(code, "$$input $1")
	}

	code = samplerDeclRe.ReplaceAllStringFunc(code, func(m string) string {
		sub := samplerDeclRe.FindStringSubmatch(m)
		macro, ok := samplerMacros[sub[1]]
		if !ok {
			return m
		}
		return macro + "(" + sub[2] + ");"
	})

	code = ssboRe.ReplaceAllStringFunc(code, func(m string) string {
		sub := ssboRe.FindStringSubmatch(m)
		acc := "RW"
		switch sub[1] {
		case "readonly":
			acc = "RO"
		case "writeonly":
			acc = "WR"
		}
		return "BUFFER_" + acc + "_AUTOREG(" + sub[2] + ", " + sub[3] + ");"
	})

	code = imageRe.ReplaceAllStringFunc(code, func(m string) string {
		sub := imageRe.FindStringSubmatch(m)
		acc := "RW"
		switch sub[2] {
		case "readonly":
			acc = "RO"
		case "writeonly":
			acc = "WR"
		}
		kind := map[string]string{
			"2D":      "IMAGE2D",
			"2DArray": "IMAGE2D_ARRAY",
			"3D":      "IMAGE3D",
		}[sub[4]]
		prefix := ""
		if sub[3] == "u" {
			prefix = "U"
		}
		return prefix + kind + "_" + acc + "_AUTOREG(" + sub[5] + ", " + sub[1] + ");"
	})

	code = localSizeRe.ReplaceAllString(code, "NUM_THREADS($1, $2, $3)")

	return code
}

// collapseBlankish removes lines that contain only
// whitespace left behind by comment stripping.
func collapseBlankish(code string) string {
	lines := strings.Split(code, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
