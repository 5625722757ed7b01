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

// Command rdmat inspects, decompiles and builds
// compiled-material containers.
//
// Usage:
//
//	rdmat show <file.material.bin>
//	rdmat decompile [-pass name] [-platform p] [-stage s] [-o file] <file.material.bin>
//	rdmat compile [-m manifest.json] [-platform p] [-cc path] [-I dir] [-o out] <source dir|pack>
//	rdmat pack [-algo zstd] [-o out.rdsp] <dir>
//	rdmat unpack [-o dir] <pack.rdsp>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rdtools/rdmat"
	"github.com/rdtools/rdmat/compile"
	"github.com/rdtools/rdmat/decompile"
	"github.com/rdtools/rdmat/dxc"
	"github.com/rdtools/rdmat/matfmt"
)

var (
	dashv bool

	passName  string
	platName  string
	stageName string
	outPath   string
	manifest  string
	ccPath    string
	includes  string
	algo      string
	timeout   time.Duration
)

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if dashv {
		fmt.Fprintf(os.Stderr, f+"\n", args...)
	}
}

func main() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	cmd, args := args[0], args[1:]

	sub := flag.NewFlagSet(cmd, flag.ExitOnError)
	switch cmd {
	case "show":
		run(sub, args, 1, show)
	case "decompile":
		sub.StringVar(&passName, "pass", "", "pass name (default: first pass)")
		sub.StringVar(&platName, "platform", "ESSL_310", "shader platform")
		sub.StringVar(&stageName, "stage", "Fragment", "shader stage")
		sub.StringVar(&outPath, "o", "-", "output file (- for stdout)")
		sub.DurationVar(&timeout, "timeout", decompile.DefaultSearchTimeout, "expression search timeout")
		run(sub, args, 1, decompileCmd)
	case "compile":
		sub.StringVar(&manifest, "m", "manifest.json", "material manifest")
		sub.StringVar(&platName, "platform", "Direct3D_SM65", "shader platform")
		sub.StringVar(&ccPath, "cc", "", "external compiler executable")
		sub.StringVar(&includes, "I", "", "include paths (comma separated)")
		sub.StringVar(&outPath, "o", "out.material.bin", "output container")
		run(sub, args, 1, compileCmd)
	case "pack":
		sub.StringVar(&algo, "algo", "zstd", "compression algorithm")
		sub.StringVar(&outPath, "o", "shaders.rdsp", "output pack")
		run(sub, args, 1, packCmd)
	case "unpack":
		sub.StringVar(&outPath, "o", ".", "output directory")
		run(sub, args, 1, unpackCmd)
	default:
		usage()
		os.Exit(1)
	}
}

func run(sub *flag.FlagSet, args []string, positional int, fn func([]string)) {
	sub.Parse(args)
	if sub.NArg() != positional {
		usage()
		os.Exit(1)
	}
	fn(sub.Args())
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rdmat [-v] <command> [options] <args>\n\n")
	fmt.Fprintf(os.Stderr, "commands:\n")
	fmt.Fprintf(os.Stderr, "  show       print a container summary\n")
	fmt.Fprintf(os.Stderr, "  decompile  reconstruct shader source from a container\n")
	fmt.Fprintf(os.Stderr, "  compile    build a container from a manifest\n")
	fmt.Fprintf(os.Stderr, "  pack       bundle shader sources into a pack\n")
	fmt.Fprintf(os.Stderr, "  unpack     extract a shader pack\n")
}

func show(args []string) {
	buf, done := load(args[0])
	defer done()
	m, err := rdmat.Read(buf)
	if err != nil {
		exitf("%s: %s\n", args[0], err)
	}
	fmt.Printf("material %q version %d encryption %s\n", m.Name, m.Version, m.Encryption)
	if m.Parent != "" {
		fmt.Printf("parent %q\n", m.Parent)
	}
	fmt.Printf("%d buffers, %d uniforms, %d overrides\n",
		len(m.Buffers), len(m.Uniforms), len(m.UniformOverrides))
	for i := range m.Passes {
		p := &m.Passes[i]
		fmt.Printf("pass %q: %d variants, blend %s, platforms %s\n",
			p.Name, len(p.Variants), p.DefaultBlendMode,
			p.SupportedPlatforms.Bitstring(m.Version))
	}
}

func decompileCmd(args []string) {
	buf, done := load(args[0])
	defer done()
	m, err := rdmat.Read(buf)
	if err != nil {
		exitf("%s: %s\n", args[0], err)
	}
	if passName == "" {
		if len(m.Passes) == 0 {
			exitf("%s: material has no passes\n", args[0])
		}
		passName = m.Passes[0].Name
	}
	platform, err := matfmt.PlatformFromName(platName)
	if err != nil {
		exitf("%s\n", err)
	}
	stage, err := matfmt.StageFromName(stageName)
	if err != nil {
		exitf("%s\n", err)
	}
	res, err := rdmat.DecompileStage(m, passName, platform, stage, decompile.Options{
		Preprocess:    platform == matfmt.ESSL100 || platform == matfmt.ESSL300 || platform == matfmt.ESSL310 || platform == matfmt.GLSL120 || platform == matfmt.GLSL430,
		Postprocess:   true,
		SearchTimeout: timeout,
	})
	if err != nil {
		exitf("%s\n", err)
	}
	logf("%d macros referenced", len(res.UsedMacros))
	writeOut(outPath, []byte(res.Code+"\n"))
}

func compileCmd(args []string) {
	platform, err := matfmt.PlatformFromName(platName)
	if err != nil {
		exitf("%s\n", err)
	}
	f, err := os.Open(manifest)
	if err != nil {
		exitf("%s\n", err)
	}
	man, err := compile.DecodeManifest(f, filepath.Ext(manifest))
	f.Close()
	if err != nil {
		exitf("%s\n", err)
	}

	var src compile.Source
	if st, err := os.Stat(args[0]); err == nil && st.IsDir() {
		src = compile.DirSource{FS: os.DirFS(args[0])}
	} else {
		buf, done := load(args[0])
		defer done()
		pack, err := compile.OpenPack(buf)
		if err != nil {
			exitf("%s: %s\n", args[0], err)
		}
		src = pack
	}
	cached, err := compile.NewCachedSource(src, 64)
	if err != nil {
		exitf("%s\n", err)
	}

	cc, err := dxc.Shared(ccPath)
	if err != nil {
		exitf("%s\n", err)
	}
	defer dxc.CloseShared()

	opts := &compile.Options{Platform: platform}
	if includes != "" {
		opts.IncludePaths = strings.Split(includes, ",")
	}
	p := &compile.Pipeline{Source: cached, Compiler: cc}
	raw, err := p.CompileBytes(context.Background(), man, opts)
	if err != nil {
		exitf("%s\n", err)
	}
	writeOut(outPath, raw)
	logf("wrote %s (%d bytes)", outPath, len(raw))
}

func packCmd(args []string) {
	sources := make(map[string][]byte)
	root := args[0]
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sources[filepath.ToSlash(rel)] = buf
		return nil
	})
	if err != nil {
		exitf("%s\n", err)
	}
	raw, err := compile.WritePack(sources, algo)
	if err != nil {
		exitf("%s\n", err)
	}
	writeOut(outPath, raw)
	logf("packed %d files", len(sources))
}

func unpackCmd(args []string) {
	buf, done := load(args[0])
	defer done()
	pack, err := compile.OpenPack(buf)
	if err != nil {
		exitf("%s: %s\n", args[0], err)
	}
	for _, name := range pack.Names() {
		raw, err := pack.Load(name)
		if err != nil {
			exitf("%s: %s\n", name, err)
		}
		dst := filepath.Join(outPath, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			exitf("%s\n", err)
		}
		if err := os.WriteFile(dst, raw, 0644); err != nil {
			exitf("%s\n", err)
		}
		logf("wrote %s", dst)
	}
}

func writeOut(path string, buf []byte) {
	if path == "-" {
		os.Stdout.Write(buf)
		return
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		exitf("%s\n", err)
	}
}
