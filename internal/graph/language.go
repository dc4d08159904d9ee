package graph

import (
	"path"
	"strings"
)

// extToLanguage maps lower-cased file extensions to grammars.
var extToLanguage = map[string]Language{
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".py":  LangPython,
	".pyi": LangPython,
	".cs":  LangCSharp,
	".go":  LangGo,
	".rs":  LangRust,
}

// DetectLanguage maps a file path to its grammar, or LangNone when the
// extension is not supported.
func DetectLanguage(p string) Language {
	ext := strings.ToLower(path.Ext(p))
	return extToLanguage[ext]
}

var docExtensions = map[string]bool{
	".md": true, ".mdx": true, ".rst": true, ".txt": true, ".adoc": true,
}

var configExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".cfg": true, ".conf": true, ".env": true, ".properties": true, ".xml": true,
}

var configNames = map[string]bool{
	"dockerfile":     true,
	"makefile":       true,
	"go.mod":         true,
	"go.sum":         true,
	"package.json":   true,
	"tsconfig.json":  true,
	"cargo.toml":     true,
	"pyproject.toml": true,
	"setup.py":       true,
	"setup.cfg":      true,
	".gitignore":     true,
	".editorconfig":  true,
}

// Classification holds the path-derived flags of a FileRecord.
type Classification struct {
	IsDoc    bool
	IsTest   bool
	IsConfig bool
}

// Classify derives documentation/test/config flags from a project-relative,
// forward-slash path.
func Classify(p string) Classification {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	ext := path.Ext(base)

	var c Classification
	c.IsDoc = docExtensions[ext] || hasSegment(lower, "docs") || hasSegment(lower, "doc")
	c.IsConfig = configNames[base] || configExtensions[ext] ||
		strings.HasSuffix(base, ".config.js") || strings.HasSuffix(base, ".config.ts") ||
		strings.HasPrefix(base, ".eslintrc") || strings.HasPrefix(base, ".prettierrc")
	c.IsTest = isTestPath(lower, base) || isCSharpTestName(path.Base(p))
	return c
}

func isTestPath(lower, base string) bool {
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_test.py"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."):
		return true
	}
	return hasSegment(lower, "__tests__") || hasSegment(lower, "tests") || hasSegment(lower, "test")
}

// isCSharpTestName matches C# test classes by file name: UserTests.cs,
// UserTest.cs, user_tests.cs, Test.cs. The suffix must start a word, so
// Latest.cs is not a test.
func isCSharpTestName(base string) bool {
	name, ok := strings.CutSuffix(base, ".cs")
	if !ok {
		name, ok = strings.CutSuffix(base, ".CS")
	}
	if !ok {
		return false
	}
	lower := strings.ToLower(name)
	if lower == "test" || lower == "tests" {
		return true
	}
	for _, suffix := range []string{"Tests", "Test"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, suffix := range []string{"_test", "_tests", ".test", ".tests"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// hasSegment reports whether dir appears as a directory segment of p.
func hasSegment(p, dir string) bool {
	segs := strings.Split(p, "/")
	for _, s := range segs[:len(segs)-1] {
		if s == dir {
			return true
		}
	}
	return false
}
