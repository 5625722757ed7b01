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
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
)

// The simple-passphrase mode encrypts the container body
// with AES-GCM's data-encryption stream and omits the
// authentication tag: AES-CTR whose initial counter block
// is the 12-byte nonce followed by a 32-bit big-endian
// block counter starting at 2 (GCM reserves counter 1 for
// the tag). The counter field wraps at 32 bits without
// carrying into the nonce.
//
// Because no tag is stored or verified, a corrupted
// ciphertext decrypts to garbage and surfaces later as a
// *FormatError from the body parser.

const nonceSize = 12

// cryptBody encrypts or decrypts (the operation is its own
// inverse) the container body with the given key material.
// The key must be 16, 24 or 32 bytes; the nonce must be at
// least 12 bytes, of which the first 12 are used.
func cryptBody(data, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &EncryptionError{Reason: err.Error()}
	}
	if len(nonce) < nonceSize {
		return nil, &EncryptionError{Reason: "nonce shorter than 12 bytes"}
	}

	var ctr [aes.BlockSize]byte
	copy(ctr[:nonceSize], nonce[:nonceSize])
	counter := uint32(2)

	out := make([]byte, len(data))
	var keystream [aes.BlockSize]byte
	for off := 0; off < len(data); off += aes.BlockSize {
		binary.BigEndian.PutUint32(ctr[nonceSize:], counter)
		counter++
		block.Encrypt(keystream[:], ctr[:])
		n := len(data) - off
		if n > aes.BlockSize {
			n = aes.BlockSize
		}
		for i := 0; i < n; i++ {
			out[off+i] = data[off+i] ^ keystream[i]
		}
	}
	return out, nil
}

// NewKey returns a fresh random 32-byte AES key and
// 12-byte nonce for encrypting a material.
func NewKey() (key, nonce []byte, err error) {
	key = make([]byte, 32)
	nonce = make([]byte, nonceSize)
	if _, err = rand.Read(key); err != nil {
		return nil, nil, err
	}
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return key, nonce, nil
}
