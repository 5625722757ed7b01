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

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

// stubBytes builds the minimal v25 "RTXStub" container
// from scratch.
func stubBytes() []byte {
	var b Buffer
	b.Uint64(Magic)
	b.String(Identifier)
	b.Uint64(25)
	b.Bytes([]byte{'E', 'N', 'O', 'N'}) // "NONE" reversed
	b.String("RTXStub")
	b.Uint8(0)  // no parent
	b.Uint8(0)  // no buffers
	b.Uint16(0) // no uniforms
	b.Uint16(0) // override table present (name != "Core/Builtins"), empty
	b.Uint16(0) // no passes
	b.Uint64(Magic)
	return b.Finish()
}

func TestStubRoundTrip(t *testing.T) {
	in := stubBytes()
	m, err := Decode(in)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "RTXStub" || m.Version != 25 || m.Encryption != EncryptionNone {
		t.Fatalf("decoded %q v%d enc %v", m.Name, m.Version, m.Encryption)
	}
	out, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Logf("in:  % 02x", in)
		t.Logf("out: % 02x", out)
		t.Error("container did not round-trip byte-for-byte")
	}
}

func sampleMaterial(version uint64) *Material {
	prec := PrecisionHighp
	interp := InterpSmooth
	deftex := "textures/white"
	return &Material{
		Version: version,
		Name:    "RenderChunk",
		Parent:  "Base",
		Buffers: []MaterialBuffer{
			{
				Name:           "s_MatTexture",
				Reg1:           3,
				Reg2:           1,
				Access:         AccessReadonly,
				Precision:      PrecisionMediump,
				Type:           TypeTexture2D,
				TextureFormat:  "rgba8",
				AlwaysOne:      1,
				SamplerState:   &SamplerState{Filter: FilterBilinear, Wrap: WrapRepeat},
				DefaultTexture: &deftex,
			},
			{
				Name:            "s_LightMap",
				Reg1:            5,
				Access:          AccessReadwrite,
				Type:            TypeStructBuffer,
				UnorderedAccess: true,
				AlwaysOne:       1,
				CustomTypeInfo:  &CustomTypeInfo{Struct: "LightData", Size: 48},
			},
		},
		Uniforms: []Uniform{
			{Name: "FogColor", Type: UniformVec4, Count: 1,
				Default: []float32{1, 0.5, 0.25, 1}},
			{Name: "World", Type: UniformMat4, Count: 1},
			{Name: "ExternalTime", Type: UniformExternal},
		},
		UniformOverrides: []Override{
			{Name: "FogColor", Value: "FogControl"},
		},
		Passes: []Pass{
			{
				Name:               "Transparent",
				SupportedPlatforms: AllPlatforms(),
				FallbackPass:       "Fallback",
				DefaultBlendMode:   BlendAlphaBlend,
				DefaultVariant:     []Flag{{Name: "Fancy", Value: "On"}},
				FramebufferBinding: 2,
				Variants: []Variant{
					{
						IsSupported: true,
						Flags:       []Flag{{Name: "Fancy", Value: "On"}},
						Shaders: []ShaderDefinition{
							{
								Stage:    StageFragment,
								Platform: ESSL310,
								Inputs: []ShaderInput{
									{
										Name:          "v_color0",
										Type:          InputVec4,
										Semantic:      Semantic{Index: SemanticColor, SubIndex: 0},
										Precision:     &prec,
										Interpolation: &interp,
									},
									{
										Name:        "i_data1",
										Type:        InputVec4,
										Semantic:    Semantic{Index: SemanticTexcoord, SubIndex: 4},
										PerInstance: true,
									},
								},
								Hash: 0xfeedface12345678,
								Shader: BGFXShader{
									Stage: StageFragment,
									Hash:  0x1020304050607080,
									Uniforms: []BGFXUniform{
										{Name: "u_fog", TypeBits: 2, Count: 1, RegIndex: 0, RegCount: 1},
									},
									Bytes:    []byte("fragment blob"),
									Attrs:    []uint16{1, 2},
									AttrSize: 16,
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestStructuralRoundTrip(t *testing.T) {
	for _, version := range []uint64{22, 23, 24, 25} {
		m := sampleMaterial(version)
		if version < 23 {
			// the field is not on the wire before v23
			m.Passes[0].FramebufferBinding = 0
		}
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("v%d: %v", version, err)
		}
		back, err := Decode(raw)
		if err != nil {
			t.Fatalf("v%d: %v", version, err)
		}
		if !reflect.DeepEqual(m, back) {
			t.Errorf("v%d: material did not round-trip structurally", version)
		}
		// and back to identical bytes
		raw2, err := Encode(back)
		if err != nil {
			t.Fatalf("v%d: %v", version, err)
		}
		if !bytes.Equal(raw, raw2) {
			t.Errorf("v%d: bytes did not round-trip", version)
		}
	}
}

func TestFramebufferBindingGate(t *testing.T) {
	m := sampleMaterial(23)
	m23, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	m.Version = 22
	m.Passes[0].FramebufferBinding = 0
	m22, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(m23) != len(m22)+4 {
		t.Errorf("v23 container should be exactly 4 bytes longer: %d vs %d",
			len(m23), len(m22))
	}
}

func TestBuiltinsOverrideGate(t *testing.T) {
	m := &Material{Version: 25, Name: "Core/Builtins"}
	raw, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	m2 := &Material{Version: 25, Name: "Core/BuiltinsX"}
	raw2, err := Encode(m2)
	if err != nil {
		t.Fatal(err)
	}
	// name differs by one byte; the non-builtins material
	// additionally carries a u16 override count
	if len(raw2) != len(raw)+1+2 {
		t.Errorf("override table gating wrong: %d vs %d", len(raw2), len(raw))
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if back.UniformOverrides != nil {
		t.Error("Core/Builtins material decoded an override table")
	}
}

func TestUnsupportedVersion(t *testing.T) {
	for _, version := range []uint64{0, 21, 26, 1000} {
		var b Buffer
		b.Uint64(Magic)
		b.String(Identifier)
		b.Uint64(version)
		b.Bytes([]byte{'E', 'N', 'O', 'N'})
		_, err := Decode(b.Finish())
		var uv UnsupportedVersionError
		if !errors.As(err, &uv) || uint64(uv) != version {
			t.Errorf("version %d: err = %v", version, err)
		}
	}
}

func TestCorruptMagic(t *testing.T) {
	raw := stubBytes()

	head := append([]byte{}, raw...)
	head[0] ^= 0xff
	var fe *FormatError
	if _, err := Decode(head); !errors.As(err, &fe) {
		t.Errorf("corrupt leading magic: %v", err)
	}

	tail := append([]byte{}, raw...)
	tail[len(tail)-1] ^= 0xff
	if _, err := Decode(tail); !errors.As(err, &fe) {
		t.Errorf("corrupt trailing magic: %v", err)
	}

	if _, err := Decode(raw[:len(raw)-3]); !errors.Is(err, ErrShortRead) {
		t.Errorf("truncated input: %v", err)
	}
}

func TestKeyPairRefused(t *testing.T) {
	var b Buffer
	b.Uint64(Magic)
	b.String(Identifier)
	b.Uint64(25)
	b.Bytes([]byte{'R', 'P', 'Y', 'K'}) // "KYPR" reversed
	var ee *EncryptionError
	if _, err := Decode(b.Finish()); !errors.As(err, &ee) {
		t.Errorf("key-pair read: %v", err)
	}
	m := &Material{Version: 25, Name: "x", Encryption: EncryptionKeyPair}
	if _, err := Encode(m); !errors.As(err, &ee) {
		t.Errorf("key-pair write: %v", err)
	}
}

func TestStageMismatchRejected(t *testing.T) {
	m := sampleMaterial(25)
	raw, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	// find the encoded stage-name string "Fragment" and
	// flip the index byte that follows it
	i := bytes.Index(raw, []byte("Fragment"))
	if i < 0 {
		t.Fatal("no stage name in output")
	}
	raw[i+len("Fragment")] = uint8(StageVertex)
	var fe *FormatError
	if _, err := Decode(raw); !errors.As(err, &fe) {
		t.Errorf("stage mismatch: %v", err)
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	m := sampleMaterial(25)
	m.Encryption = EncryptionSimplePassphrase
	key, nonce, err := NewKey()
	if err != nil {
		t.Fatal(err)
	}
	m.Key, m.Nonce = key, nonce

	raw, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	// the body must not appear in plaintext
	if bytes.Contains(raw, []byte("RenderChunk")) {
		t.Error("material name visible in encrypted container")
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, back) {
		t.Error("encrypted material did not round-trip")
	}
	raw2, err := Encode(back)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Error("encrypted bytes did not round-trip")
	}
}

func TestESSL310WireScenario(t *testing.T) {
	// a legacy container can carry a distinct ESSL_300
	// shader; the same conceptual material written at v25
	// emits the ESSL_310 name at wire index 8
	m := sampleMaterial(24)
	m.Passes[0].Variants[0].Shaders[0].Platform = ESSL300
	raw, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := back.Passes[0].Variants[0].Shaders[0].Platform; got != ESSL300 {
		t.Errorf("v24 platform = %s, want ESSL_300", got)
	}
	if !bytes.Contains(raw, []byte("ESSL_300")) {
		t.Error("v24 container should name ESSL_300")
	}

	m.Version = 25
	raw, err = Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("ESSL_300")) {
		t.Error("v25 container must not name ESSL_300")
	}
	back, err = Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := back.Passes[0].Variants[0].Shaders[0].Platform; got != ESSL310 {
		t.Errorf("v25 platform = %s, want ESSL_310", got)
	}
}
