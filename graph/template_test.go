package graph

import "testing"

func TestRenderTemplateSubstitutesKnownKeys(t *testing.T) {
	out, err := renderTemplate("Hello {name}, you are {age} years old.", map[string]any{"name": "Ada", "age": 36})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Hello Ada, you are 36 years old."
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestRenderTemplateNoPlaceholders(t *testing.T) {
	out, err := renderTemplate("a static prompt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a static prompt" {
		t.Fatalf("expected unchanged text, got %q", out)
	}
}

func TestRenderTemplateMissingKeyErrors(t *testing.T) {
	_, err := renderTemplate("Hello {name}", map[string]any{})
	if err == nil {
		t.Fatal("expected an error for a template key missing from the view")
	}
}
