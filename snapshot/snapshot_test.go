// Package snapshot_test provides golden snapshot tests for the GLSL
// front end.
//
// For each input shader in testdata/in/, the test compiles to shader
// IR and compares the listing to a golden file in testdata/golden/.
//
// To regenerate golden files after intentional changes:
//
//	UPDATE_GOLDEN=1 go test ./snapshot/...
//
// A missing golden file skips its case unless UPDATE_GOLDEN is set,
// so fresh checkouts can bootstrap the corpus.
package snapshot_test

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gogpu/swgl/glsl"
)

// shaderFile represents an input shader loaded from disk.
type shaderFile struct {
	name   string // base name with extension, e.g. "solid.frag"
	kind   glsl.ShaderKind
	source string
}

func loadInputShaders(t *testing.T, dir string) []shaderFile {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var shaders []shaderFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind := glsl.FragmentShaderKind
		switch filepath.Ext(e.Name()) {
		case ".vert":
			kind = glsl.VertexShaderKind
		case ".frag":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("reading %s: %v", e.Name(), err)
		}
		shaders = append(shaders, shaderFile{name: e.Name(), kind: kind, source: string(data)})
	}
	sort.Slice(shaders, func(i, j int) bool { return shaders[i].name < shaders[j].name })
	return shaders
}

func compareGolden(t *testing.T, path, got string) {
	t.Helper()
	if os.Getenv("UPDATE_GOLDEN") != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatal(err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Skipf("golden %s missing; run with UPDATE_GOLDEN=1", path)
	}
	if string(want) != got {
		t.Errorf("output differs from %s:\n--- got ---\n%s\n--- want ---\n%s", path, got, want)
	}
}

// TestSnapshots compiles every input shader and compares its IR
// listing to the golden corpus.
func TestSnapshots(t *testing.T) {
	shaders := loadInputShaders(t, filepath.Join("testdata", "in"))
	if len(shaders) == 0 {
		t.Fatal("no input shaders found in testdata/in/")
	}

	for i := range shaders {
		shader := &shaders[i]
		t.Run(shader.name, func(t *testing.T) {
			result := glsl.Compile([]string{shader.source}, shader.kind)
			if !result.OK {
				t.Fatalf("compile failed:\n%s", result.InfoLog)
			}
			listing := result.Program.Listing()
			golden := filepath.Join("testdata", "golden",
				strings.ReplaceAll(shader.name, ".", "_")+".txt")
			compareGolden(t, golden, listing)
		})
	}
}

// TestSnapshotsAreDeterministic compiles each input twice and
// requires byte-identical listings, so goldens stay stable.
func TestSnapshotsAreDeterministic(t *testing.T) {
	shaders := loadInputShaders(t, filepath.Join("testdata", "in"))
	for i := range shaders {
		shader := &shaders[i]
		a := glsl.Compile([]string{shader.source}, shader.kind)
		b := glsl.Compile([]string{shader.source}, shader.kind)
		if !a.OK || !b.OK {
			t.Fatalf("%s: compile failed:\n%s%s", shader.name, a.InfoLog, b.InfoLog)
		}
		if a.Program.Listing() != b.Program.Listing() {
			t.Errorf("%s: listings differ between runs", shader.name)
		}
	}
}
