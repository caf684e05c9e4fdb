package catalog

import (
	"strings"
	"testing"
	"testing/fstest"
)

func catalogFS(files map[string]string) fstest.MapFS {
	out := fstest.MapFS{}
	for name, content := range files {
		out[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return out
}

const baseDeck = `locale: "en-US"
namespace: "deck"
messages:
  "deck.total": "Total: %d / %d"
`

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range []string{BaseLocale, "ja-JP"} {
		if !bundle.HasLocale(locale) {
			t.Fatalf("expected locale %s", locale)
		}
	}
	if got := bundle.Locales(); len(got) != 2 || got[0] != "en-US" {
		t.Fatalf("locales = %v", got)
	}
}

func TestEmbeddedLocalesAreComplete(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range bundle.Locales() {
		if missing := bundle.Missing(locale); len(missing) > 0 {
			t.Fatalf("locale %s is missing %v", locale, missing)
		}
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	value, ok := Default().Message("fr-FR", "deck.total")
	if !ok || value != "Total: %d / %d" {
		t.Fatalf("Message = %q, %v", value, ok)
	}
	value, ok = Default().Message("ja-JP", "deck.category.trainer")
	if !ok || value != "トレーナーズ" {
		t.Fatalf("Message(ja-JP) = %q, %v", value, ok)
	}
	if _, ok := Default().Message("ja-JP", "deck.nope"); ok {
		t.Fatal("expected unknown key to miss")
	}
}

func TestNamespaceFallsBackToBaseLocale(t *testing.T) {
	resolved, messages := Default().Namespace("fr-FR", NamespaceErrors)
	if resolved != BaseLocale {
		t.Fatalf("resolved locale = %q, want %s", resolved, BaseLocale)
	}
	if messages["NO_CHANGES"] == "" {
		t.Fatal("expected base errors namespace")
	}

	resolved, messages = Default().Namespace("ja-JP", NamespaceErrors)
	if resolved != "ja-JP" || !strings.Contains(messages["NO_CHANGES"], "変更") {
		t.Fatalf("ja-JP errors = %q %v", resolved, messages["NO_CHANGES"])
	}
	messages["NO_CHANGES"] = "mutated"
	if _, again := Default().Namespace("ja-JP", NamespaceErrors); again["NO_CHANGES"] == "mutated" {
		t.Fatal("Namespace must return a copy")
	}
}

func TestLoadFromFSRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "no files",
			files: map[string]string{},
			want:  "no catalog files",
		},
		{
			name: "missing base locale",
			files: map[string]string{"locales/ja-JP/deck.yaml": `locale: "ja-JP"
namespace: "deck"
messages:
  "deck.total": "%d / %d"
`},
			want: "base locale",
		},
		{
			name:  "malformed yaml",
			files: map[string]string{"locales/en-US/deck.yaml": "locale: [unterminated\n"},
			want:  "parse catalog",
		},
		{
			name: "locale mismatch",
			files: map[string]string{"locales/en-US/deck.yaml": `locale: "ja-JP"
namespace: "deck"
messages:
  "deck.total": "x"
`},
			want: "must match directory",
		},
		{
			name: "deck key outside prefix",
			files: map[string]string{"locales/en-US/deck.yaml": `locale: "en-US"
namespace: "deck"
messages:
  "core.app.name": "x"
`},
			want: `must start with "deck."`,
		},
		{
			name: "error key not a code",
			files: map[string]string{
				"locales/en-US/deck.yaml": baseDeck,
				"locales/en-US/errors.yaml": `locale: "en-US"
namespace: "errors"
messages:
  "deck not found": "x"
`,
			},
			want: "not an error code",
		},
		{
			name: "unknown namespace",
			files: map[string]string{"locales/en-US/web.yaml": `locale: "en-US"
namespace: "web"
messages:
  "web.title": "x"
`},
			want: "unknown namespace",
		},
		{
			name: "verb mismatch",
			files: map[string]string{
				"locales/en-US/deck.yaml": baseDeck,
				"locales/ja-JP/deck.yaml": `locale: "ja-JP"
namespace: "deck"
messages:
  "deck.total": "合計: %s"
`,
			},
			want: "uses verbs",
		},
		{
			name: "translation without base key",
			files: map[string]string{
				"locales/en-US/deck.yaml": baseDeck,
				"locales/ja-JP/deck.yaml": `locale: "ja-JP"
namespace: "deck"
messages:
  "deck.extra": "x"
`,
			},
			want: "missing from en-US",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromFS(catalogFS(tc.files))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestMissingListsUntranslatedKeys(t *testing.T) {
	bundle, err := LoadFromFS(catalogFS(map[string]string{
		"locales/en-US/deck.yaml": `locale: "en-US"
namespace: "deck"
messages:
  "deck.total": "Total: %d / %d"
  "deck.diff.none": "No changes"
`,
		"locales/ja-JP/deck.yaml": `locale: "ja-JP"
namespace: "deck"
messages:
  "deck.total": "合計: %d / %d"
`,
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := bundle.Missing("ja-JP"); len(got) != 1 || got[0] != "deck.diff.none" {
		t.Fatalf("missing = %v", got)
	}
}

func TestPrintfVerbsIgnoresEscapes(t *testing.T) {
	got := printfVerbs("100%% of %s is %5.2f")
	if len(got) != 2 || got[0] != "%s" || got[1] != "%5.2f" {
		t.Fatalf("verbs = %v", got)
	}
}
