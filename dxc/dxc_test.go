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

package dxc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefineArgs(t *testing.T) {
	args := defineArgs(map[string]string{
		"B":    "2",
		"A":    "1",
		"FLAG": "",
	})
	want := []string{"-D", "A=1", "-D", "B=2", "-D", "FLAG"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestMapCompiler(t *testing.T) {
	m := &MapCompiler{Objects: map[[2]string][]byte{
		{"CSMain", "cs_6_5"}: []byte("object"),
	}}
	res, err := m.Compile(context.Background(), &Job{EntryPoint: "CSMain", TargetProfile: "cs_6_5"})
	if err != nil || !res.OK || string(res.Object) != "object" {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	// returned object is a copy
	res.Object[0] = 'X'
	res2, _ := m.Compile(context.Background(), &Job{EntryPoint: "CSMain", TargetProfile: "cs_6_5"})
	if string(res2.Object) != "object" {
		t.Error("object aliased between calls")
	}
	res, err = m.Compile(context.Background(), &Job{EntryPoint: "nope", TargetProfile: "cs_6_5"})
	if err != nil || res.OK {
		t.Errorf("missing object: res = %+v, err = %v", res, err)
	}
	m.Release()
	m.Release() // no-op
}

func TestNewExecMissing(t *testing.T) {
	_, err := NewExec("definitely-not-a-compiler-binary")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("err = %v", err)
	}
}

// fakeCompiler writes a shell script that echoes a
// diagnostic and copies its source argument to the -Fo
// output.
func fakeCompiler(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake compiler")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-dxc")
	script := `#!/bin/sh
echo "fake-dxc: note" >&2
out=""
src=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-Fo" ]; then out="$2"; shift 2; continue; fi
  src="$1"; shift
done
`
	if exitCode == 0 {
		script += "cp \"$src\" \"$out\"\nexit 0\n"
	} else {
		script += "echo \"error X1000: bad shader\" >&2\nexit 1\n"
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecCompile(t *testing.T) {
	e, err := NewExec(fakeCompiler(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	res, err := e.Compile(context.Background(), &Job{
		Source:        []byte("void main() {}"),
		EntryPoint:    "main",
		TargetProfile: "ps_6_5",
		Defines:       map[string]string{"A": "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || string(res.Object) != "void main() {}" {
		t.Errorf("res = %+v", res)
	}
	if !strings.Contains(res.Diagnostics, "fake-dxc") {
		t.Errorf("diagnostics %q", res.Diagnostics)
	}
}

func TestExecCompileFailure(t *testing.T) {
	e, err := NewExec(fakeCompiler(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	res, err := e.Compile(context.Background(), &Job{
		Source:        []byte("broken"),
		EntryPoint:    "main",
		TargetProfile: "ps_6_5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || !strings.Contains(res.Diagnostics, "X1000") {
		t.Errorf("res = %+v", res)
	}
}

func TestExecReleased(t *testing.T) {
	e, err := NewExec(fakeCompiler(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	e.Release()
	e.Release() // double release is a no-op
	if _, err := e.Compile(context.Background(), &Job{}); err == nil {
		t.Error("released compiler accepted a job")
	}
}
