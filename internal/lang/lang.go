// Package lang knows the programming languages accepted by the code tasks.
package lang

import "strings"

type profile struct {
	comment   string
	framework string
}

var known = map[string]profile{
	"python":     {"#", "pytest"},
	"javascript": {"//", "jest"},
	"typescript": {"//", "jest"},
	"java":       {"//", "JUnit 5"},
	"go":         {"//", "testing"},
	"c":          {"//", "Unity"},
	"cpp":        {"//", "GoogleTest"},
	"csharp":     {"//", "xUnit"},
	"rust":       {"//", "cargo test"},
	"ruby":       {"#", "RSpec"},
	"php":        {"//", "PHPUnit"},
	"kotlin":     {"//", "JUnit 5"},
	"swift":      {"//", "XCTest"},
	"scala":      {"//", "ScalaTest"},
	"bash":       {"#", "bats"},
	"sql":        {"--", "pgTAP"},
}

var aliases = map[string]string{
	"golang": "go",
	"c++":    "cpp",
	"c#":     "csharp",
	"js":     "javascript",
	"ts":     "typescript",
	"py":     "python",
	"sh":     "bash",
	"shell":  "bash",
}

// Normalize returns the canonical name of language and whether it is recognized.
func Normalize(language string) (string, bool) {
	l := strings.ToLower(strings.TrimSpace(language))
	if a, ok := aliases[l]; ok {
		l = a
	}
	if _, ok := known[l]; !ok {
		return "", false
	}
	return l, true
}

// CommentPrefix is the line comment marker for language; "//" when unknown.
func CommentPrefix(language string) string {
	if l, ok := Normalize(language); ok {
		return known[l].comment
	}
	return "//"
}

// TestFramework names the usual unit test framework for language.
func TestFramework(language string) string {
	if l, ok := Normalize(language); ok {
		return known[l].framework
	}
	return ""
}

// CountLines counts non-blank lines.
func CountLines(code string) int {
	n := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
