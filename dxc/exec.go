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
	"bytes"
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DefaultPath is the compiler executable used when Exec is
// constructed without an explicit path.
const DefaultPath = "dxc"

// Exec invokes an out-of-process compiler executable.
// Source is written to a per-call unique temp file and the
// object is read back from a -Fo output path; both are
// unlinked whether the compilation succeeds or fails.
//
// The executable is not re-entrant with respect to its
// scratch state, so calls are serialized; callers that
// need parallelism create multiple Exec instances.
type Exec struct {
	// Logger, if set, receives one line per invocation.
	Logger *log.Logger

	path    string
	workDir string

	mu       sync.Mutex
	released bool
}

// NewExec returns an Exec adapter for the executable at
// path (or DefaultPath if empty). The executable must
// exist; a missing compiler is a *LoadError.
func NewExec(path string) (*Exec, error) {
	if path == "" {
		path = DefaultPath
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	dir, err := os.MkdirTemp("", "rdmat-dxc-*")
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	return &Exec{path: resolved, workDir: dir}, nil
}

func (e *Exec) logf(f string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(f, args...)
	}
}

// Compile implements Compiler.
func (e *Exec) Compile(ctx context.Context, job *Job) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, &LoadError{Path: e.path, Reason: "compiler released"}
	}

	id := uuid.New().String()
	src := filepath.Join(e.workDir, id+".hlsl")
	obj := filepath.Join(e.workDir, id+".obj")
	defer os.Remove(src)
	defer os.Remove(obj)

	if err := os.WriteFile(src, job.Source, 0644); err != nil {
		return nil, err
	}

	args := []string{"-T", job.TargetProfile, "-E", job.EntryPoint}
	args = append(args, defineArgs(job.Defines)...)
	for _, inc := range job.IncludePaths {
		args = append(args, "-I", inc)
	}
	args = append(args, job.Args...)
	args = append(args, "-Fo", obj, src)

	cmd := exec.CommandContext(ctx, e.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diag := stderr.String()
	if diag == "" {
		diag = stdout.String()
	}
	e.logf("dxc %s -E %s: err=%v", job.TargetProfile, job.EntryPoint, runErr)

	if ctx.Err() != nil {
		// cancelled: discard any partial output
		return nil, ctx.Err()
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return nil, &LoadError{Path: e.path, Reason: runErr.Error()}
		}
		return &Result{OK: false, Diagnostics: diag}, nil
	}

	object, err := os.ReadFile(obj)
	if err != nil {
		return &Result{OK: false, Diagnostics: diag + "\n(no object produced)"}, nil
	}
	return &Result{OK: true, Object: object, Diagnostics: diag}, nil
}

// Release implements Compiler. It removes the scratch
// directory; double release is a no-op.
func (e *Exec) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	os.RemoveAll(e.workDir)
}

// MapCompiler serves precompiled objects keyed by
// (entry point, target profile). It is the in-process
// adapter used by tests.
type MapCompiler struct {
	Objects map[[2]string][]byte
}

// Compile implements Compiler.
func (m *MapCompiler) Compile(_ context.Context, job *Job) (*Result, error) {
	obj, ok := m.Objects[[2]string{job.EntryPoint, job.TargetProfile}]
	if !ok {
		return &Result{
			OK:          false,
			Diagnostics: "no object for " + job.EntryPoint + "/" + job.TargetProfile,
		}, nil
	}
	out := make([]byte, len(obj))
	copy(out, obj)
	return &Result{OK: true, Object: out}, nil
}

// Release implements Compiler.
func (m *MapCompiler) Release() {}

// The process-wide shared instance. It is created lazily
// by Shared and reference-counted: every Shared call must
// be paired with a CloseShared call.
var (
	sharedMu   sync.Mutex
	sharedExec *Exec
	sharedRefs int
	sharedPath string
)

// Shared returns the lazily created process-wide Exec
// instance for the given path. All callers sharing an
// instance share its serialization lock.
func Shared(path string) (Compiler, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedExec != nil {
		if path != "" && path != sharedPath {
			return nil, &LoadError{Path: path, Reason: "shared compiler already loaded from " + sharedPath}
		}
		sharedRefs++
		return sharedExec, nil
	}
	e, err := NewExec(path)
	if err != nil {
		return nil, err
	}
	sharedExec, sharedPath, sharedRefs = e, path, 1
	return e, nil
}

// CloseShared drops one reference to the shared instance,
// releasing it when the count reaches zero. Calling it
// without a matching Shared is a no-op.
func CloseShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedRefs == 0 {
		return
	}
	sharedRefs--
	if sharedRefs == 0 {
		sharedExec.Release()
		sharedExec = nil
		sharedPath = ""
	}
}
