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

// Encode serializes m into container bytes.
//
// Encode(Decode(b)) == b for every valid container b, and
// Decode(Encode(m)) is structurally equal to m for every
// well-formed material. Encoding a key-pair material or a
// material with out-of-range fields fails.
func Encode(m *Material) ([]byte, error) {
	if m.Version < MinVersion || m.Version > MaxVersion {
		return nil, UnsupportedVersionError(m.Version)
	}
	if m.Encryption == EncryptionKeyPair {
		return nil, &EncryptionError{Reason: "key-pair encryption unsupported"}
	}

	var body Buffer
	if err := m.writeBody(&body); err != nil {
		return nil, err
	}

	var out Buffer
	out.Uint64(Magic)
	out.String(Identifier)
	out.Uint64(m.Version)
	tag := m.Encryption.tag()
	out.Bytes([]byte{tag[3], tag[2], tag[1], tag[0]})

	switch m.Encryption {
	case EncryptionNone:
		out.Bytes(body.Finish())
	case EncryptionSimplePassphrase:
		ciphertext, err := cryptBody(body.Finish(), m.Key, m.Nonce)
		if err != nil {
			return nil, err
		}
		out.Array(m.Key)
		out.Array(m.Nonce)
		out.Array(ciphertext)
	}
	return out.Finish(), nil
}

func (m *Material) writeBody(b *Buffer) error {
	b.String(m.Name)
	b.Bool(m.Parent != "")
	if m.Parent != "" {
		b.String(m.Parent)
	}

	if len(m.Buffers) > 0xff {
		return errf(-1, "too many buffers (%d)", len(m.Buffers))
	}
	b.Uint8(uint8(len(m.Buffers)))
	for i := range m.Buffers {
		if err := m.Buffers[i].write(b); err != nil {
			return err
		}
	}

	b.Uint16(uint16(len(m.Uniforms)))
	for i := range m.Uniforms {
		if err := m.Uniforms[i].write(b); err != nil {
			return err
		}
	}

	if m.Name != builtinsName {
		b.Uint16(uint16(len(m.UniformOverrides)))
		for i := range m.UniformOverrides {
			b.String(m.UniformOverrides[i].Name)
			b.String(m.UniformOverrides[i].Value)
		}
	}

	b.Uint16(uint16(len(m.Passes)))
	for i := range m.Passes {
		if err := m.Passes[i].write(b, m.Version); err != nil {
			return err
		}
	}

	b.Uint64(Magic)
	return nil
}

func (buf *MaterialBuffer) write(b *Buffer) error {
	b.String(buf.Name)
	b.Uint16(buf.Reg1)
	b.Uint8(uint8(buf.Access))
	b.Uint8(uint8(buf.Precision))
	b.Bool(buf.UnorderedAccess)
	b.Uint8(uint8(buf.Type))
	b.String(buf.TextureFormat)
	b.Uint64(buf.AlwaysOne)
	b.Uint8(buf.Reg2)

	b.Bool(buf.SamplerState != nil)
	if buf.SamplerState != nil {
		if buf.SamplerState.Filter > FilterBilinear || buf.SamplerState.Wrap > WrapRepeat {
			return errf(-1, "buffer %q: bad sampler state", buf.Name)
		}
		b.Uint8(uint8(buf.SamplerState.Filter) | uint8(buf.SamplerState.Wrap)<<1)
	}
	writeOptString(b, buf.DefaultTexture)
	writeOptString(b, buf.TexturePath)
	b.Bool(buf.CustomTypeInfo != nil)
	if buf.CustomTypeInfo != nil {
		b.String(buf.CustomTypeInfo.Struct)
		b.Uint64(buf.CustomTypeInfo.Size)
	}
	return nil
}

func writeOptString(b *Buffer, s *string) {
	b.Bool(s != nil)
	if s != nil {
		b.String(*s)
	}
}

func (u *Uniform) write(b *Buffer) error {
	b.String(u.Name)
	if u.Type.Words() == 0 && u.Type != UniformExternal {
		return errf(-1, "uniform %q: bad type %d", u.Name, u.Type)
	}
	b.Uint16(uint16(u.Type))
	if u.Type == UniformExternal {
		return nil
	}
	b.Uint32(u.Count)
	b.Bool(u.Default != nil)
	if u.Default != nil {
		if len(u.Default) != u.Type.Words() {
			return errf(-1, "uniform %q: default has %d words, want %d",
				u.Name, len(u.Default), u.Type.Words())
		}
		b.Float32Array(u.Default)
	}
	return nil
}

func (p *Pass) write(b *Buffer, version uint64) error {
	b.String(p.Name)
	if p.rawBits != "" {
		b.String(p.rawBits)
	} else {
		b.String(p.SupportedPlatforms.Bitstring(version))
	}
	b.String(p.FallbackPass)
	b.Uint16(uint16(p.DefaultBlendMode))

	b.Uint16(uint16(len(p.DefaultVariant)))
	for i := range p.DefaultVariant {
		b.String(p.DefaultVariant[i].Name)
		b.String(p.DefaultVariant[i].Value)
	}

	if version >= 23 {
		b.Uint32(p.FramebufferBinding)
	}

	b.Uint16(uint16(len(p.Variants)))
	for i := range p.Variants {
		if err := p.Variants[i].write(b, version); err != nil {
			return err
		}
	}
	return nil
}

func (v *Variant) write(b *Buffer, version uint64) error {
	b.Bool(v.IsSupported)
	b.Uint16(uint16(len(v.Flags)))
	for i := range v.Flags {
		b.String(v.Flags[i].Name)
		b.String(v.Flags[i].Value)
	}
	b.Uint16(uint16(len(v.Shaders)))
	for i := range v.Shaders {
		if err := v.Shaders[i].write(b, version); err != nil {
			return err
		}
	}
	return nil
}

func (d *ShaderDefinition) write(b *Buffer, version uint64) error {
	b.String(d.Stage.String())
	b.Uint8(uint8(d.Stage))

	wire, err := WireIndex(d.Platform, version)
	if err != nil {
		return err
	}
	// ESSL_300 is canonicalized to ESSL_310 in modern
	// containers; emit the canonical name so the name and
	// the index agree on re-read
	plat, err := PlatformOfWireIndex(wire, version)
	if err != nil {
		return err
	}
	b.String(plat.String())
	b.Uint8(wire)

	b.Uint16(uint16(len(d.Inputs)))
	for i := range d.Inputs {
		d.Inputs[i].write(b)
	}
	b.Uint64(d.Hash)

	sub, err := d.Shader.encode(d.Platform, d.Stage)
	if err != nil {
		return err
	}
	b.Array(sub)
	return nil
}

func (in *ShaderInput) write(b *Buffer) {
	b.String(in.Name)
	b.Uint8(uint8(in.Type))
	b.Uint8(uint8(in.Semantic.Index))
	b.Uint8(in.Semantic.SubIndex)
	b.Bool(in.PerInstance)

	b.Bool(in.Precision != nil)
	if in.Precision != nil {
		b.Uint8(uint8(*in.Precision))
	}
	b.Bool(in.Interpolation != nil)
	if in.Interpolation != nil {
		b.Uint8(uint8(*in.Interpolation))
	}
}
