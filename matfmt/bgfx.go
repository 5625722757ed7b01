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

// DecodeBGFXShader parses a back-end shader wrapper.
// The enclosing platform and stage determine the expected
// tag, the wrapper version, and whether a compute group
// size is present (Metal compute shaders only).
func DecodeBGFXShader(buf []byte, platform Platform, stage Stage) (*BGFXShader, error) {
	sh := &BGFXShader{}
	if err := sh.decode(buf, platform, stage); err != nil {
		return nil, err
	}
	return sh, nil
}

// EncodeBGFXShader is the inverse of DecodeBGFXShader.
func EncodeBGFXShader(sh *BGFXShader, platform Platform) ([]byte, error) {
	return sh.encode(platform, sh.Stage)
}

func (sh *BGFXShader) decode(buf []byte, platform Platform, stage Stage) error {
	c := NewCursor(buf)
	tag, err := c.Bytes(3)
	if err != nil {
		return err
	}
	tagStage, err := stageOfWrapperTag(string(tag))
	if err != nil {
		return err
	}
	if tagStage != stage {
		return errf(0, "wrapper tag %q disagrees with stage %s", tag, stage)
	}
	sh.Stage = tagStage

	ver, err := c.Uint8()
	if err != nil {
		return err
	}
	if ver != wrapperVersion(stage) {
		return errf(3, "wrapper version %d, want %d for stage %s",
			ver, wrapperVersion(stage), stage)
	}

	if sh.Hash, err = c.Uint64(); err != nil {
		return err
	}

	nuni, err := c.Uint16()
	if err != nil {
		return err
	}
	if nuni > 0 {
		sh.Uniforms = make([]BGFXUniform, nuni)
	}
	for i := range sh.Uniforms {
		u := &sh.Uniforms[i]
		nameLen, err := c.Uint8()
		if err != nil {
			return err
		}
		name, err := c.Bytes(int(nameLen))
		if err != nil {
			return err
		}
		u.Name = string(name)
		if u.TypeBits, err = c.Uint8(); err != nil {
			return err
		}
		if u.Count, err = c.Uint8(); err != nil {
			return err
		}
		if u.RegIndex, err = c.Uint16(); err != nil {
			return err
		}
		if u.RegCount, err = c.Uint16(); err != nil {
			return err
		}
	}

	if platform == Metal && stage == StageCompute {
		for i := range sh.GroupSize {
			if sh.GroupSize[i], err = c.Uint16(); err != nil {
				return err
			}
		}
	}

	if sh.Bytes, err = c.Array(); err != nil {
		return err
	}
	pad, err := c.Uint8()
	if err != nil {
		return err
	}
	if pad != 0 {
		return errf(c.Offset()-1, "wrapper pad byte %#x, want 0", pad)
	}

	// the attribute block is optional: it is simply
	// absent when the wrapper ends here
	sh.AttrSize = -1
	if c.Remaining() == 0 {
		return nil
	}
	nattr, err := c.Uint8()
	if err != nil {
		return err
	}
	sh.Attrs = make([]uint16, nattr)
	for i := range sh.Attrs {
		if sh.Attrs[i], err = c.Uint16(); err != nil {
			return err
		}
	}
	size, err := c.Uint16()
	if err != nil {
		return err
	}
	sh.AttrSize = int32(size)
	if c.Remaining() != 0 {
		return errf(c.Offset(), "%d trailing bytes after shader wrapper", c.Remaining())
	}
	return nil
}

func (sh *BGFXShader) encode(platform Platform, stage Stage) ([]byte, error) {
	tag, err := wrapperTag(stage)
	if err != nil {
		return nil, err
	}
	var b Buffer
	b.Bytes([]byte(tag))
	b.Uint8(wrapperVersion(stage))
	b.Uint64(sh.Hash)

	if len(sh.Uniforms) > 0xffff {
		return nil, errf(-1, "too many wrapper uniforms (%d)", len(sh.Uniforms))
	}
	b.Uint16(uint16(len(sh.Uniforms)))
	for i := range sh.Uniforms {
		u := &sh.Uniforms[i]
		if len(u.Name) > 0xff {
			return nil, errf(-1, "wrapper uniform name %q too long", u.Name)
		}
		b.Uint8(uint8(len(u.Name)))
		b.Bytes([]byte(u.Name))
		b.Uint8(u.TypeBits)
		b.Uint8(u.Count)
		b.Uint16(u.RegIndex)
		b.Uint16(u.RegCount)
	}

	if platform == Metal && stage == StageCompute {
		for i := range sh.GroupSize {
			b.Uint16(sh.GroupSize[i])
		}
	}

	b.Array(sh.Bytes)
	b.Uint8(0)

	if sh.AttrSize != -1 {
		if len(sh.Attrs) > 0xff {
			return nil, errf(-1, "too many wrapper attributes (%d)", len(sh.Attrs))
		}
		b.Uint8(uint8(len(sh.Attrs)))
		for _, a := range sh.Attrs {
			b.Uint16(a)
		}
		b.Uint16(uint16(sh.AttrSize))
	}
	return b.Finish(), nil
}
