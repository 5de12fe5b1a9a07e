package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_Registered(t *testing.T) {
	err := New(CodeConfigParse)
	if err.Category != CategoryConfig {
		t.Errorf("Category = %q, want %q", err.Category, CategoryConfig)
	}
	if err.Message != "Configuration file is not valid JSON" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Suggestion == "" {
		t.Error("registered suggestion should be copied")
	}
}

func TestNew_Unknown(t *testing.T) {
	err := New("E999")
	if err.Message != "Unknown error" {
		t.Errorf("Message = %q, want %q", err.Message, "Unknown error")
	}
}

func TestError_String(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", New(CodeConfigInvalid), "E102: Invalid configuration value"},
		{"field", New(CodeConfigInvalid).WithField("server.port"), "E102: Invalid configuration value (server.port)"},
		{"detail", New(CodeConfigInvalid).WithField("server.port").WithDetailf("%d is out of range", 70000),
			"E102: Invalid configuration value (server.port): 70000 is out of range"},
		{"no code", Newf(CategoryCLI, "bad %s", "flag"), "bad flag"},
		{"wrapped", New(CodeBindFailed).Wrap(stderrors.New("address in use")),
			"E110: Unable to bind the listening socket: address in use"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeConfigParse) != nil {
		t.Error("FromError(nil) should be nil")
	}

	base := stderrors.New("boom")
	e := FromError(base, CodeBindFailed)
	if !stderrors.Is(e, base) {
		t.Error("wrapped error should be reachable through errors.Is")
	}

	orig := New(CodeConfigInvalid)
	if got := FromError(fmt.Errorf("ctx: %w", orig), CodeBindFailed); got != orig {
		t.Error("existing *Error should be returned as is")
	}
	if !HasCode(fmt.Errorf("ctx: %w", orig), CodeConfigInvalid) {
		t.Error("HasCode should see through wrapping")
	}
	if HasCode(base, CodeConfigInvalid) {
		t.Error("HasCode should be false for plain errors")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeConfigInvalid).
		WithField("folders[0].dir").
		WithDetail("directory ./www does not exist").
		WithSuggestion("Create the directory")

	out := err.Format()
	for _, want := range []string{
		"ERROR E102: Invalid configuration value",
		"  folders[0].dir",
		"  directory ./www does not exist",
		"  Hint: Create the directory",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("plain output = %q", buf.String())
	}

	buf.Reset()
	Print(&buf, fmt.Errorf("wrapped: %w", New(CodeBindFailed)))
	if !strings.Contains(buf.String(), "ERROR E110") {
		t.Errorf("structured output = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}
