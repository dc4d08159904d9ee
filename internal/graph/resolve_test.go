package graph

import (
	"os"
	"path/filepath"
	"testing"
)

// --- TypeScript / JavaScript ---

func TestResolveEcma_Relative(t *testing.T) {
	r := NewResolver("", []string{
		"src/index.ts",
		"src/service.ts",
		"src/types.d.ts",
		"src/ui/button.tsx",
		"src/util/index.ts",
		"src/legacy.js",
		"src/sub/handler.ts",
		"lib/entry.mjs",
	})

	tests := []struct {
		name     string
		importer string
		spec     string
		want     string
	}{
		{"extension probe", "src/index.ts", "./service", "src/service.ts"},
		{"exact match", "src/index.ts", "./service.ts", "src/service.ts"},
		{"tsx probe", "src/index.ts", "./ui/button", "src/ui/button.tsx"},
		{"declaration file", "src/index.ts", "./types", "src/types.d.ts"},
		{"compiled extension rewritten", "src/index.ts", "./service.js", "src/service.ts"},
		{"plain js", "src/index.ts", "./legacy", "src/legacy.js"},
		{"directory index", "src/index.ts", "./util", "src/util/index.ts"},
		{"parent directory", "src/sub/handler.ts", "../service", "src/service.ts"},
		{"mjs", "src/index.ts", "../lib/entry", "lib/entry.mjs"},
		{"not found", "src/index.ts", "./nonexistent", ""},
		{"package specifier", "src/index.ts", "react", ""},
		{"scoped package", "src/index.ts", "@scope/pkg/sub", ""},
		{"escapes root", "src/index.ts", "../../outside", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.importer, LangTypeScript, tt.spec, nil)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

// --- Python ---

func TestResolvePython(t *testing.T) {
	r := NewResolver("", []string{
		"app/__init__.py",
		"app/main.py",
		"app/models.py",
		"app/db/__init__.py",
		"app/db/session.py",
		"app/api/routes.py",
		"src/toolkit/core.py",
		"stubs/types.pyi",
	})

	tests := []struct {
		name     string
		importer string
		spec     string
		names    []string
		want     string
	}{
		{"absolute module", "app/main.py", "app.models", []string{"User"}, "app/models.py"},
		{"absolute package", "app/main.py", "app.db", []string{"*"}, "app/db/__init__.py"},
		{"relative sibling", "app/main.py", ".models", []string{"User"}, "app/models.py"},
		{"relative parent", "app/api/routes.py", "..models", []string{"User"}, "app/models.py"},
		{"bare dot submodule", "app/main.py", ".", []string{"models"}, "app/models.py"},
		{"bare dot package", "app/db/session.py", ".", []string{"*"}, "app/db/__init__.py"},
		{"from package import module", "app/main.py", "app.db", []string{"session"}, "app/db/__init__.py"},
		{"src layout", "app/main.py", "toolkit.core", []string{"*"}, "src/toolkit/core.py"},
		{"stub file", "app/main.py", "stubs.types", []string{"*"}, "stubs/types.pyi"},
		{"external", "app/main.py", "requests", []string{"get"}, ""},
		{"above root", "app/main.py", "...x", []string{"*"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.importer, LangPython, tt.spec, tt.names)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

// --- Go ---

func TestResolveGo_LocalModule(t *testing.T) {
	dir := t.TempDir()
	gomod := "module example.com/shop\n\ngo 1.22\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(dir, []string{
		"main.go",
		"internal/cart/cart.go",
		"internal/cart/cart_test.go",
		"internal/cart/add.go",
	})

	tests := []struct {
		spec string
		want string
	}{
		{"example.com/shop/internal/cart", "internal/cart/add.go"},
		{"example.com/shop", "main.go"},
		{"example.com/shop/internal/missing", ""},
		{"fmt", ""},
		{"github.com/other/lib", ""},
		{"example.com/shopping", ""},
	}
	for _, tt := range tests {
		got := r.Resolve("main.go", LangGo, tt.spec, nil)
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
		}
	}
}

func TestResolveGo_NoGoMod(t *testing.T) {
	r := NewResolver(t.TempDir(), []string{"a/a.go"})
	if got := r.Resolve("main.go", LangGo, "example.com/x/a", nil); got != "" {
		t.Errorf("expected no resolution without go.mod, got %q", got)
	}
	r.WithGoModule("example.com/x")
	if got := r.Resolve("main.go", LangGo, "example.com/x/a", nil); got != "a/a.go" {
		t.Errorf("Resolve with module override = %q, want a/a.go", got)
	}
}

// --- Rust ---

func TestResolveRust(t *testing.T) {
	r := NewResolver("", []string{
		"src/main.rs",
		"src/model.rs",
		"src/service/mod.rs",
		"src/service/users.rs",
		"src/config.rs",
	})

	tests := []struct {
		name     string
		importer string
		spec     string
		want     string
	}{
		{"crate module", "src/main.rs", "crate::model", "src/model.rs"},
		{"crate item", "src/main.rs", "crate::model::User", "src/model.rs"},
		{"crate use list", "src/main.rs", "crate::model::{User, Repo}", "src/model.rs"},
		{"crate mod dir", "src/main.rs", "crate::service", "src/service/mod.rs"},
		{"crate glob", "src/main.rs", "crate::service::users::*", "src/service/users.rs"},
		{"self from mod.rs", "src/service/mod.rs", "self::users", "src/service/users.rs"},
		{"super", "src/service/users.rs", "super::super::config", "src/config.rs"},
		{"super from mod.rs", "src/service/mod.rs", "super::model", "src/model.rs"},
		{"mod declaration", "src/main.rs", "self::config", "src/config.rs"},
		{"crate root item", "src/service/users.rs", "crate::run", "src/main.rs"},
		{"external crate", "src/main.rs", "serde::Deserialize", ""},
		{"std", "src/main.rs", "std::collections::HashMap", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.importer, LangRust, tt.spec, nil)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

// --- C# ---

func TestResolveCSharp_UsingIsUnresolved(t *testing.T) {
	r := NewResolver("", []string{"Models/User.cs", "Services/UserService.cs"})
	if got := r.Resolve("Services/UserService.cs", LangCSharp, "App.Models", nil); got != "" {
		t.Errorf("using directive resolved to %q, want unresolved", got)
	}
}

func TestResolver_ResultIsAlwaysKnown(t *testing.T) {
	known := []string{"a.ts", "b/index.ts", "pkg/mod.py"}
	r := NewResolver("", known)

	specs := []string{"./a", "./b", "./c", "../x", "./b/index", "pkg"}
	for _, spec := range specs {
		got := r.Resolve("a.ts", LangTypeScript, spec, nil)
		if got != "" && !r.Contains(got) {
			t.Errorf("Resolve(%q) = %q which is not a known path", spec, got)
		}
	}
}
