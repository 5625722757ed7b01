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

package matfmt

import "strconv"

// Stage identifies the shader role within a variant.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageUnknown
)

var stageNames = []string{"Vertex", "Fragment", "Compute", "Unknown"}

func (s Stage) String() string { return enumName(uint(s), stageNames, "stage") }

// StageFromName is the inverse of Stage.String.
func StageFromName(name string) (Stage, error) {
	i, err := enumValue(name, stageNames, "stage")
	return Stage(i), err
}

// Precision is the optional shader precision qualifier.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionLowp
	PrecisionMediump
	PrecisionHighp
)

var precisionNames = []string{"None", "Lowp", "Mediump", "Highp"}

func (p Precision) String() string { return enumName(uint(p), precisionNames, "precision") }

// PrecisionFromName is the inverse of Precision.String.
func PrecisionFromName(name string) (Precision, error) {
	i, err := enumValue(name, precisionNames, "precision")
	return Precision(i), err
}

// BufferAccess describes how a shader accesses a buffer
// resource.
type BufferAccess uint8

const (
	AccessUndefined BufferAccess = iota
	AccessReadonly
	AccessWriteonly
	AccessReadwrite
)

var accessNames = []string{"Undefined", "Readonly", "Writeonly", "Readwrite"}

func (a BufferAccess) String() string { return enumName(uint(a), accessNames, "buffer access") }

// BufferAccessFromName is the inverse of BufferAccess.String.
func BufferAccessFromName(name string) (BufferAccess, error) {
	i, err := enumValue(name, accessNames, "buffer access")
	return BufferAccess(i), err
}

// BufferType is the GPU resource type of a material buffer.
type BufferType uint8

const (
	TypeTexture2D BufferType = iota
	TypeTexture2DArray
	TypeExternal2D
	TypeTexture3D
	TypeTextureCube
	TypeTextureCubeArray
	TypeStructBuffer
	TypeRawBuffer
	TypeAccelerationStructure
	TypeShadow2D
	TypeShadow2DArray
)

var bufferTypeNames = []string{
	"Texture2D", "Texture2DArray", "External2D", "Texture3D",
	"TextureCube", "TextureCubeArray", "StructBuffer", "RawBuffer",
	"AccelerationStructure", "Shadow2D", "Shadow2DArray",
}

func (t BufferType) String() string { return enumName(uint(t), bufferTypeNames, "buffer type") }

// BufferTypeFromName is the inverse of BufferType.String.
func BufferTypeFromName(name string) (BufferType, error) {
	i, err := enumValue(name, bufferTypeNames, "buffer type")
	return BufferType(i), err
}

// UniformType is the data type of a material uniform.
// The numeric values are fixed by the wire format.
type UniformType uint16

const (
	UniformVec4     UniformType = 2
	UniformMat3     UniformType = 3
	UniformMat4     UniformType = 4
	UniformExternal UniformType = 5
)

func (t UniformType) String() string {
	switch t {
	case UniformVec4:
		return "Vec4"
	case UniformMat3:
		return "Mat3"
	case UniformMat4:
		return "Mat4"
	case UniformExternal:
		return "External"
	}
	return "UniformType(" + strconv.Itoa(int(t)) + ")"
}

// UniformTypeFromName is the inverse of UniformType.String.
func UniformTypeFromName(name string) (UniformType, error) {
	switch name {
	case "Vec4":
		return UniformVec4, nil
	case "Mat3":
		return UniformMat3, nil
	case "Mat4":
		return UniformMat4, nil
	case "External":
		return UniformExternal, nil
	}
	return 0, &EnumError{Kind: "uniform type", Name: name}
}

// Words returns the number of f32 words in a default value
// of this type, or 0 for External.
func (t UniformType) Words() int {
	switch t {
	case UniformVec4:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	}
	return 0
}

// BlendMode is the default blend mode of a render pass.
type BlendMode uint16

const (
	BlendUnspecified BlendMode = iota
	BlendNone
	BlendReplace
	BlendAlphaBlend
	BlendColorBlendAlphaAdd
	BlendPreMultiplied
	BlendInvertColor
	BlendAdditive
	BlendAdditiveAlpha
	BlendMultiply
	BlendMultiplyBoth
	BlendInverseSrcAlpha
	BlendSrcAlpha
)

var blendNames = []string{
	"Unspecified", "None", "Replace", "AlphaBlend",
	"ColorBlendAlphaAdd", "PreMultiplied", "InvertColor", "Additive",
	"AdditiveAlpha", "Multiply", "MultiplyBoth", "InverseSrcAlpha",
	"SrcAlpha",
}

func (m BlendMode) String() string { return enumName(uint(m), blendNames, "blend mode") }

// BlendModeFromName is the inverse of BlendMode.String.
func BlendModeFromName(name string) (BlendMode, error) {
	i, err := enumValue(name, blendNames, "blend mode")
	return BlendMode(i), err
}

// InputType is the data type of a vertex or varying input.
type InputType uint8

const (
	InputFloat InputType = iota
	InputVec2
	InputVec3
	InputVec4
	InputInt
	InputIVec2
	InputIVec3
	InputIVec4
	InputUInt
	InputUVec2
	InputUVec3
	InputUVec4
	InputMat4
)

var inputTypeNames = []string{
	"float", "vec2", "vec3", "vec4",
	"int", "ivec2", "ivec3", "ivec4",
	"uint", "uvec2", "uvec3", "uvec4",
	"mat4",
}

func (t InputType) String() string { return enumName(uint(t), inputTypeNames, "input type") }

// InputTypeFromName is the inverse of InputType.String.
func InputTypeFromName(name string) (InputType, error) {
	i, err := enumValue(name, inputTypeNames, "input type")
	return InputType(i), err
}

// SemanticIndex selects the meaning of a shader input.
type SemanticIndex uint8

const (
	SemanticPosition SemanticIndex = iota
	SemanticNormal
	SemanticTangent
	SemanticBitangent
	SemanticColor
	SemanticBlendIndices
	SemanticBlendWeight
	SemanticTexcoord
	SemanticUnknown
	SemanticFrontFacing
)

var semanticNames = []string{
	"POSITION", "NORMAL", "TANGENT", "BITANGENT", "COLOR",
	"BLENDINDICES", "BLENDWEIGHT", "TEXCOORD", "UNKNOWN", "FRONTFACING",
}

func (s SemanticIndex) String() string { return enumName(uint(s), semanticNames, "semantic") }

// SemanticFromName is the inverse of SemanticIndex.String.
func SemanticFromName(name string) (SemanticIndex, error) {
	i, err := enumValue(name, semanticNames, "semantic")
	return SemanticIndex(i), err
}

// Interpolation is the optional varying interpolation
// qualifier of a shader input.
type Interpolation uint8

const (
	InterpFlat Interpolation = iota
	InterpSmooth
	InterpNoperspective
	InterpCentroid
)

var interpNames = []string{"Flat", "Smooth", "Noperspective", "Centroid"}

func (i Interpolation) String() string { return enumName(uint(i), interpNames, "interpolation") }

// InterpolationFromName is the inverse of Interpolation.String.
func InterpolationFromName(name string) (Interpolation, error) {
	i, err := enumValue(name, interpNames, "interpolation")
	return Interpolation(i), err
}

// SamplerFilter and SamplerWrap are the two components of
// a buffer's sampler state.
type (
	SamplerFilter uint8
	SamplerWrap   uint8
)

const (
	FilterPoint SamplerFilter = iota
	FilterBilinear
)

const (
	WrapClamp SamplerWrap = iota
	WrapRepeat
)

func (f SamplerFilter) String() string {
	return enumName(uint(f), []string{"Point", "Bilinear"}, "sampler filter")
}

func (w SamplerWrap) String() string {
	return enumName(uint(w), []string{"Clamp", "Repeat"}, "sampler wrap")
}

// Encryption is the container's body encryption mode.
type Encryption uint8

const (
	EncryptionNone Encryption = iota
	EncryptionSimplePassphrase
	EncryptionKeyPair
)

// tag returns the canonical (non-reversed) 4cc of the mode.
func (e Encryption) tag() string {
	switch e {
	case EncryptionNone:
		return "NONE"
	case EncryptionSimplePassphrase:
		return "SMPL"
	case EncryptionKeyPair:
		return "KYPR"
	}
	return "????"
}

func (e Encryption) String() string {
	switch e {
	case EncryptionNone:
		return "None"
	case EncryptionSimplePassphrase:
		return "SimplePassphrase"
	case EncryptionKeyPair:
		return "KeyPair"
	}
	return "Encryption(" + strconv.Itoa(int(e)) + ")"
}

func enumName(v uint, names []string, kind string) string {
	if v < uint(len(names)) {
		return names[v]
	}
	return kind + "(" + strconv.FormatUint(uint64(v), 10) + ")"
}

func enumValue(name string, names []string, kind string) (uint, error) {
	for i := range names {
		if names[i] == name {
			return uint(i), nil
		}
	}
	return 0, &EnumError{Kind: kind, Name: name}
}

