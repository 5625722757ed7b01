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

// Decode parses a complete container from buf.
//
// Decode returns *FormatError for malformed input,
// UnsupportedVersionError for versions outside
// [MinVersion, MaxVersion], *EncryptionError for the
// key-pair encryption mode, and *EnumError for unknown
// enum names.
func Decode(buf []byte) (*Material, error) {
	c := NewCursor(buf)
	magic, err := c.Uint64()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, errf(0, "bad leading magic %#x", magic)
	}
	id, err := c.String()
	if err != nil {
		return nil, err
	}
	if id != Identifier {
		return nil, errf(8, "bad identifier %q", id)
	}
	version, err := c.Uint64()
	if err != nil {
		return nil, err
	}
	if version < MinVersion || version > MaxVersion {
		return nil, UnsupportedVersionError(version)
	}
	tag, err := c.Bytes(4)
	if err != nil {
		return nil, err
	}
	mode, err := encryptionOfTag(tag)
	if err != nil {
		return nil, err
	}

	m := &Material{Version: version, Encryption: mode}
	body := c
	switch mode {
	case EncryptionNone:
		// body continues in place
	case EncryptionSimplePassphrase:
		key, err := c.Array()
		if err != nil {
			return nil, err
		}
		nonce, err := c.Array()
		if err != nil {
			return nil, err
		}
		ciphertext, err := c.Array()
		if err != nil {
			return nil, err
		}
		plain, err := cryptBody(ciphertext, key, nonce)
		if err != nil {
			return nil, err
		}
		m.Key, m.Nonce = key, nonce
		body = NewCursor(plain)
	case EncryptionKeyPair:
		return nil, &EncryptionError{Reason: "key-pair encryption unsupported"}
	}

	if err := m.readBody(body); err != nil {
		return nil, err
	}
	if mode != EncryptionNone && c.Remaining() != 0 {
		return nil, errf(c.Offset(), "%d trailing bytes after encrypted body", c.Remaining())
	}
	return m, nil
}

func (m *Material) readBody(c *Cursor) error {
	var err error
	m.Name, err = c.String()
	if err != nil {
		return err
	}
	hasParent, err := c.Bool()
	if err != nil {
		return err
	}
	if hasParent {
		m.Parent, err = c.String()
		if err != nil {
			return err
		}
	}

	nbuf, err := c.Uint8()
	if err != nil {
		return err
	}
	m.Buffers = make([]MaterialBuffer, nbuf)
	for i := range m.Buffers {
		if err := m.Buffers[i].read(c); err != nil {
			return err
		}
	}

	nuni, err := c.Uint16()
	if err != nil {
		return err
	}
	m.Uniforms = make([]Uniform, nuni)
	for i := range m.Uniforms {
		if err := m.Uniforms[i].read(c); err != nil {
			return err
		}
	}

	if m.Name != builtinsName {
		nov, err := c.Uint16()
		if err != nil {
			return err
		}
		m.UniformOverrides = make([]Override, nov)
		for i := range m.UniformOverrides {
			if m.UniformOverrides[i].Name, err = c.String(); err != nil {
				return err
			}
			if m.UniformOverrides[i].Value, err = c.String(); err != nil {
				return err
			}
		}
	}

	npass, err := c.Uint16()
	if err != nil {
		return err
	}
	m.Passes = make([]Pass, npass)
	for i := range m.Passes {
		if err := m.Passes[i].read(c, m.Version); err != nil {
			return err
		}
	}

	trailer, err := c.Uint64()
	if err != nil {
		return err
	}
	if trailer != Magic {
		return errf(c.Offset()-8, "bad trailing magic %#x", trailer)
	}
	if c.Remaining() != 0 {
		return errf(c.Offset(), "%d trailing bytes after container body", c.Remaining())
	}
	return nil
}

func (b *MaterialBuffer) read(c *Cursor) error {
	var err error
	if b.Name, err = c.String(); err != nil {
		return err
	}
	if b.Reg1, err = c.Uint16(); err != nil {
		return err
	}
	access, err := c.Uint8()
	if err != nil {
		return err
	}
	if int(access) >= len(accessNames) {
		return errf(c.Offset()-1, "bad buffer access %d", access)
	}
	b.Access = BufferAccess(access)
	prec, err := c.Uint8()
	if err != nil {
		return err
	}
	if int(prec) >= len(precisionNames) {
		return errf(c.Offset()-1, "bad precision %d", prec)
	}
	b.Precision = Precision(prec)
	if b.UnorderedAccess, err = c.Bool(); err != nil {
		return err
	}
	typ, err := c.Uint8()
	if err != nil {
		return err
	}
	if int(typ) >= len(bufferTypeNames) {
		return errf(c.Offset()-1, "bad buffer type %d", typ)
	}
	b.Type = BufferType(typ)
	if b.TextureFormat, err = c.String(); err != nil {
		return err
	}
	if b.AlwaysOne, err = c.Uint64(); err != nil {
		return err
	}
	if b.Reg2, err = c.Uint8(); err != nil {
		return err
	}

	hasSampler, err := c.Bool()
	if err != nil {
		return err
	}
	if hasSampler {
		bits, err := c.Uint8()
		if err != nil {
			return err
		}
		if bits > 3 {
			return errf(c.Offset()-1, "bad sampler state bits %#x", bits)
		}
		b.SamplerState = &SamplerState{
			Filter: SamplerFilter(bits & 1),
			Wrap:   SamplerWrap(bits >> 1),
		}
	}
	if b.DefaultTexture, err = readOptString(c); err != nil {
		return err
	}
	if b.TexturePath, err = readOptString(c); err != nil {
		return err
	}
	hasCustom, err := c.Bool()
	if err != nil {
		return err
	}
	if hasCustom {
		info := &CustomTypeInfo{}
		if info.Struct, err = c.String(); err != nil {
			return err
		}
		if info.Size, err = c.Uint64(); err != nil {
			return err
		}
		b.CustomTypeInfo = info
	}
	return nil
}

func readOptString(c *Cursor) (*string, error) {
	has, err := c.Bool()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	s, err := c.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (u *Uniform) read(c *Cursor) error {
	var err error
	if u.Name, err = c.String(); err != nil {
		return err
	}
	typ, err := c.Uint16()
	if err != nil {
		return err
	}
	u.Type = UniformType(typ)
	if u.Type.Words() == 0 && u.Type != UniformExternal {
		return errf(c.Offset()-2, "bad uniform type %d", typ)
	}
	if u.Type == UniformExternal {
		return nil
	}
	if u.Count, err = c.Uint32(); err != nil {
		return err
	}
	hasDefault, err := c.Bool()
	if err != nil {
		return err
	}
	if hasDefault {
		u.Default, err = c.Float32Array(u.Type.Words())
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pass) read(c *Cursor, version uint64) error {
	var err error
	if p.Name, err = c.String(); err != nil {
		return err
	}
	bits, err := c.String()
	if err != nil {
		return err
	}
	p.SupportedPlatforms = PlatformSetFromBitstring(bits, version)
	if bits != p.SupportedPlatforms.Bitstring(version) {
		// preserve degenerate encodings verbatim so the
		// container still round-trips byte-for-byte
		p.rawBits = bits
	}
	if p.FallbackPass, err = c.String(); err != nil {
		return err
	}
	blend, err := c.Uint16()
	if err != nil {
		return err
	}
	if int(blend) >= len(blendNames) {
		return errf(c.Offset()-2, "bad blend mode %d", blend)
	}
	p.DefaultBlendMode = BlendMode(blend)

	ndv, err := c.Uint16()
	if err != nil {
		return err
	}
	p.DefaultVariant = make([]Flag, ndv)
	for i := range p.DefaultVariant {
		if p.DefaultVariant[i].Name, err = c.String(); err != nil {
			return err
		}
		if p.DefaultVariant[i].Value, err = c.String(); err != nil {
			return err
		}
	}

	if version >= 23 {
		if p.FramebufferBinding, err = c.Uint32(); err != nil {
			return err
		}
	}

	nvar, err := c.Uint16()
	if err != nil {
		return err
	}
	p.Variants = make([]Variant, nvar)
	for i := range p.Variants {
		if err := p.Variants[i].read(c, version); err != nil {
			return err
		}
	}
	return nil
}

func (v *Variant) read(c *Cursor, version uint64) error {
	var err error
	if v.IsSupported, err = c.Bool(); err != nil {
		return err
	}
	nflag, err := c.Uint16()
	if err != nil {
		return err
	}
	v.Flags = make([]Flag, nflag)
	for i := range v.Flags {
		if v.Flags[i].Name, err = c.String(); err != nil {
			return err
		}
		if v.Flags[i].Value, err = c.String(); err != nil {
			return err
		}
	}
	nsh, err := c.Uint16()
	if err != nil {
		return err
	}
	v.Shaders = make([]ShaderDefinition, nsh)
	for i := range v.Shaders {
		if err := v.Shaders[i].read(c, version); err != nil {
			return err
		}
	}
	return nil
}

func (d *ShaderDefinition) read(c *Cursor, version uint64) error {
	stageName, err := c.String()
	if err != nil {
		return err
	}
	stageIdx, err := c.Uint8()
	if err != nil {
		return err
	}
	stage, err := StageFromName(stageName)
	if err != nil {
		return err
	}
	if Stage(stageIdx) != stage {
		return errf(c.Offset()-1, "stage name %q disagrees with stage index %d", stageName, stageIdx)
	}
	d.Stage = stage

	platName, err := c.String()
	if err != nil {
		return err
	}
	platIdx, err := c.Uint8()
	if err != nil {
		return err
	}
	plat, err := PlatformFromName(platName)
	if err != nil {
		return err
	}
	wire, err := WireIndex(plat, version)
	if err != nil {
		return err
	}
	if wire != platIdx {
		return errf(c.Offset()-1, "platform %q disagrees with wire index %d under version %d",
			platName, platIdx, version)
	}
	// the wire index is canonical: in modern containers
	// it maps ESSL_300 names onto ESSL_310
	d.Platform, err = PlatformOfWireIndex(platIdx, version)
	if err != nil {
		return err
	}

	nin, err := c.Uint16()
	if err != nil {
		return err
	}
	d.Inputs = make([]ShaderInput, nin)
	for i := range d.Inputs {
		if err := d.Inputs[i].read(c); err != nil {
			return err
		}
	}
	if d.Hash, err = c.Uint64(); err != nil {
		return err
	}
	sub, err := c.Array()
	if err != nil {
		return err
	}
	return d.Shader.decode(sub, d.Platform, d.Stage)
}

func (in *ShaderInput) read(c *Cursor) error {
	var err error
	if in.Name, err = c.String(); err != nil {
		return err
	}
	typ, err := c.Uint8()
	if err != nil {
		return err
	}
	if int(typ) >= len(inputTypeNames) {
		return errf(c.Offset()-1, "bad input type %d", typ)
	}
	in.Type = InputType(typ)
	sem, err := c.Uint8()
	if err != nil {
		return err
	}
	if int(sem) >= len(semanticNames) {
		return errf(c.Offset()-1, "bad input semantic %d", sem)
	}
	in.Semantic.Index = SemanticIndex(sem)
	if in.Semantic.SubIndex, err = c.Uint8(); err != nil {
		return err
	}
	if in.PerInstance, err = c.Bool(); err != nil {
		return err
	}

	hasPrec, err := c.Bool()
	if err != nil {
		return err
	}
	if hasPrec {
		p, err := c.Uint8()
		if err != nil {
			return err
		}
		if int(p) >= len(precisionNames) {
			return errf(c.Offset()-1, "bad precision %d", p)
		}
		prec := Precision(p)
		in.Precision = &prec
	}
	hasInterp, err := c.Bool()
	if err != nil {
		return err
	}
	if hasInterp {
		iv, err := c.Uint8()
		if err != nil {
			return err
		}
		if int(iv) >= len(interpNames) {
			return errf(c.Offset()-1, "bad interpolation %d", iv)
		}
		interp := Interpolation(iv)
		in.Interpolation = &interp
	}
	return nil
}

func encryptionOfTag(tag []byte) (Encryption, error) {
	// the 4cc appears byte-reversed on disk
	rev := [4]byte{tag[3], tag[2], tag[1], tag[0]}
	switch string(rev[:]) {
	case "NONE":
		return EncryptionNone, nil
	case "SMPL":
		return EncryptionSimplePassphrase, nil
	case "KYPR":
		return EncryptionKeyPair, nil
	}
	return 0, &EncryptionError{Reason: "unknown mode tag " + string(tag)}
}
