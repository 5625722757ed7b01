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

package compile

import (
	"fmt"
	"io/fs"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Source resolves shader source files by name. Load
// returns a buffer owned by the caller.
type Source interface {
	Load(fileName string) ([]byte, error)
}

// SourceNotFoundError indicates a fileName the provider
// cannot resolve.
type SourceNotFoundError struct {
	FileName string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("compile: shader source %q not found", e.FileName)
}

// DirSource loads shader sources from a file tree.
type DirSource struct {
	FS fs.FS
}

// Load implements Source.
func (d DirSource) Load(fileName string) ([]byte, error) {
	buf, err := fs.ReadFile(d.FS, fileName)
	if err != nil {
		return nil, &SourceNotFoundError{FileName: fileName}
	}
	return buf, nil
}

// CachedSource decorates a Source with an LRU cache, so
// repeated references to the same file in one manifest hit
// the underlying provider once. Cache hits return copies.
type CachedSource struct {
	inner Source
	cache *lru.Cache[string, []byte]
}

// NewCachedSource wraps src with a cache of at most size
// entries.
func NewCachedSource(src Source, size int) (*CachedSource, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedSource{inner: src, cache: c}, nil
}

// Load implements Source.
func (c *CachedSource) Load(fileName string) ([]byte, error) {
	if buf, ok := c.cache.Get(fileName); ok {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out, nil
	}
	buf, err := c.inner.Load(fileName)
	if err != nil {
		return nil, err
	}
	stored := make([]byte, len(buf))
	copy(stored, buf)
	c.cache.Add(fileName, stored)
	return buf, nil
}
