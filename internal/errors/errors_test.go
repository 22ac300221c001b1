package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "tag mismatch",
			code:    "A001",
			wantMsg: "Template tags do not match",
			wantCat: CategoryTemplate,
		},
		{
			name:    "missing hyphen",
			code:    "A003",
			wantMsg: "Component name must contain a hyphen",
			wantCat: CategoryComponent,
		},
		{
			name:    "slot missing",
			code:    "A010",
			wantMsg: "Child slot not found",
			wantCat: CategoryInsertion,
		},
		{
			name:    "unknown error code",
			code:    "A999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestAllCodesHaveMessages(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%q) not found", code)
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has empty message or category", code)
		}
	}
}

func TestAlpmlError_Error(t *testing.T) {
	err := New("A001").WithDetail("opening 'div', closing 'span'")
	want := "A001: Template tags do not match: opening 'div', closing 'span'"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &AlpmlError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestAlpmlError_Fatal(t *testing.T) {
	fatal := []string{"A001", "A002", "A003", "A005", "A040"}
	for _, code := range fatal {
		if !New(code).Fatal() {
			t.Errorf("%s should be fatal", code)
		}
	}
	recovered := []string{"A004", "A010", "A011", "A020", "A030", "A031"}
	for _, code := range recovered {
		if New(code).Fatal() {
			t.Errorf("%s should not be fatal", code)
		}
	}
}

func TestAlpmlError_WithSource(t *testing.T) {
	src := "<template>\n  <div>\n</span></template>"
	offset := strings.Index(src, "</span>")

	err := New("A001").WithSource(src, offset)
	if err.Location.Line != 3 {
		t.Errorf("Line = %d, want 3", err.Location.Line)
	}
	if err.Location.Column != 1 {
		t.Errorf("Column = %d, want 1", err.Location.Column)
	}
	if err.ContextStart != 1 {
		t.Errorf("ContextStart = %d, want 1", err.ContextStart)
	}
	if len(err.Context) != 3 {
		t.Errorf("len(Context) = %d, want 3", len(err.Context))
	}

	err.InFile("navbar.html")
	if got := err.Location.String(); got != "navbar.html:3:1" {
		t.Errorf("Location = %q, want navbar.html:3:1", got)
	}
}

func TestAlpmlError_WithLocation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "navbar.html")
	content := "<template props=\"name\">\n<p>\nhi ${name}\n</p>\n</template>\n"
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("A002").WithLocation(tmpFile, 3, 4)
	if err.Location.File != tmpFile {
		t.Errorf("Location.File = %q, want %q", err.Location.File, tmpFile)
	}
	if len(err.Context) == 0 {
		t.Fatal("Context should not be empty")
	}
	if err.Context[3-err.ContextStart] != "hi ${name}" {
		t.Errorf("context line = %q, want %q", err.Context[3-err.ContextStart], "hi ${name}")
	}
}

func TestAlpmlError_WrapAndIs(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := New("A030").Wrap(inner)

	if err.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
	wrapped := fmt.Errorf("loading navbar: %w", err)
	if !HasCode(wrapped, "A030") {
		t.Error("HasCode should find A030 through fmt wrapping")
	}
	if HasCode(wrapped, "A031") {
		t.Error("HasCode should not match a different code")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "A030") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	ae := New("A001")
	if FromError(ae, "A030") != ae {
		t.Error("FromError should return AlpmlError as-is")
	}

	stdErr := fmt.Errorf("boom")
	if result := FromError(stdErr, "A030"); result.Wrapped != stdErr {
		t.Error("Standard error should be wrapped")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	src := "<div>\n${name}\n</span>"
	err := New("A001").
		WithDetail("opening tag 'div' does not match closing tag 'span'").
		WithSource(src, strings.Index(src, "</span>")).
		InFile("navbar.html")

	out := err.Format()
	for _, want := range []string{
		"ERROR A001: Template tags do not match",
		"navbar.html:3:1",
		"→    3 │ </span>",
		"Hint: Close the root element",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	warn := New("A010").Format()
	if !strings.Contains(warn, "WARN A010") {
		t.Errorf("recoverable errors should be labelled WARN:\n%s", warn)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("A002").WithSource("", 0)
	var decoded map[string]any
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &decoded); jerr != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v", jerr)
	}
	if decoded["code"] != "A002" {
		t.Errorf("code = %v, want A002", decoded["code"])
	}
	if decoded["category"] != string(CategoryTemplate) {
		t.Errorf("category = %v, want template", decoded["category"])
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	want := []string{"one two", "three", "four five"}
	if len(lines) != len(want) {
		t.Fatalf("wrapText = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
