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

//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// load maps the file at path read-only; the returned
// cleanup must be called when the bytes are no longer
// needed. Empty files and mmap failures fall back to a
// plain read.
func load(path string) ([]byte, func()) {
	f, err := os.Open(path)
	if err != nil {
		exitf("%s\n", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		exitf("%s\n", err)
	}
	if info.Size() > 0 {
		mem, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()),
			unix.PROT_READ, unix.MAP_PRIVATE)
		if err == nil {
			return mem, func() { unix.Munmap(mem) }
		}
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		exitf("%s\n", err)
	}
	return buf, func() {}
}
