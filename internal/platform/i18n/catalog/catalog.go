// Package catalog loads the embedded deckledger message catalogs and
// registers them with golang.org/x/text/message.
//
// Catalogs live under locales/<locale>/<namespace>.yaml. Three namespaces are
// recognised: core (application strings), deck (printf formats used by the
// renderer) and errors (text/template messages keyed by error code).
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other locale falls back to.
const BaseLocale = "en-US"

// Namespaces.
const (
	NamespaceCore   = "core"
	NamespaceDeck   = "deck"
	NamespaceErrors = "errors"
)

var errorCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// printf verbs, ignoring the %% escape.
var printfVerbPattern = regexp.MustCompile(`%[-+# 0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z]`)

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds messages by locale and namespace.
type Bundle struct {
	messages map[string]map[string]map[string]string
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var defaultBundle = mustLoadDefault()

// Default returns the embedded bundle, already registered with x/text.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locales/*/*.yaml from catalogFS and checks every
// translation against the base locale.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{messages: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", p, err)
		}
	}
	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := b.checkFormats(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	if want := path.Base(path.Dir(p)); locale != want {
		return fmt.Errorf("locale %q must match directory %q", locale, want)
	}
	if want := strings.TrimSuffix(path.Base(p), ".yaml"); namespace != want {
		return fmt.Errorf("namespace %q must match file name %q", namespace, want)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("no messages")
	}

	namespaces, ok := b.messages[locale]
	if !ok {
		namespaces = map[string]map[string]string{}
		b.messages[locale] = namespaces
	}
	if _, exists := namespaces[namespace]; exists {
		return fmt.Errorf("namespace %q already defined for %s", namespace, locale)
	}
	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if err := checkKey(namespace, key); err != nil {
			return err
		}
		for other, existing := range namespaces {
			if _, dup := existing[key]; dup {
				return fmt.Errorf("key %q already defined in %s/%s", key, locale, other)
			}
		}
		messages[key] = value
	}
	namespaces[namespace] = messages
	return nil
}

func checkKey(namespace, key string) error {
	switch namespace {
	case NamespaceCore, NamespaceDeck:
		if !strings.HasPrefix(key, namespace+".") {
			return fmt.Errorf("key %q must start with %q", key, namespace+".")
		}
	case NamespaceErrors:
		if !errorCodePattern.MatchString(key) {
			return fmt.Errorf("key %q is not an error code", key)
		}
	default:
		return fmt.Errorf("unknown namespace %q", namespace)
	}
	return nil
}

// checkFormats rejects deck translations whose printf verbs differ from the
// base locale, since the renderer passes the same arguments to every locale.
func (b *Bundle) checkFormats() error {
	base := b.messages[BaseLocale][NamespaceDeck]
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		for key, value := range b.messages[locale][NamespaceDeck] {
			want, ok := base[key]
			if !ok {
				return fmt.Errorf("locale %s defines %q which is missing from %s", locale, key, BaseLocale)
			}
			if got, exp := printfVerbs(value), printfVerbs(want); !slices.Equal(got, exp) {
				return fmt.Errorf("locale %s key %q uses verbs %v, want %v", locale, key, got, exp)
			}
		}
	}
	return nil
}

func printfVerbs(format string) []string {
	return printfVerbPattern.FindAllString(strings.ReplaceAll(format, "%%", ""), -1)
}

// Register installs deck and core messages into x/text/message so a
// message.Printer can Sprintf by key. Each locale is also registered under
// its base language.
func (b *Bundle) Register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if baseTag := language.Make(base.String()); baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for _, namespace := range []string{NamespaceCore, NamespaceDeck} {
			for key, value := range b.messages[locale][namespace] {
				for _, t := range tags {
					if err := message.SetString(t, key, value); err != nil {
						return fmt.Errorf("register %s %q: %w", locale, key, err)
					}
				}
			}
		}
	}
	return nil
}

// Locales returns the loaded locales in sorted order.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// HasLocale reports whether locale was loaded.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.messages[strings.TrimSpace(locale)]
	return ok
}

// Message returns the message for key, falling back to the base locale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	key = strings.TrimSpace(key)
	for _, l := range []string{strings.TrimSpace(locale), BaseLocale} {
		for _, messages := range b.messages[l] {
			if value, ok := messages[key]; ok {
				return value, true
			}
		}
	}
	return "", false
}

// Namespace returns a copy of one namespace and the locale that supplied it.
// Locales without the namespace resolve to the base locale.
func (b *Bundle) Namespace(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	messages, ok := b.messages[locale][namespace]
	if !ok {
		locale = BaseLocale
		messages = b.messages[BaseLocale][namespace]
	}
	out := make(map[string]string, len(messages))
	for key, value := range messages {
		out[key] = value
	}
	return locale, out
}

// Missing lists base-locale keys that locale does not translate.
func (b *Bundle) Missing(locale string) []string {
	var out []string
	for namespace, messages := range b.messages[BaseLocale] {
		for key := range messages {
			if _, ok := b.messages[locale][namespace][key]; !ok {
				out = append(out, key)
			}
		}
	}
	sort.Strings(out)
	return out
}

func mustLoadDefault() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := b.Register(); err != nil {
		panic(err)
	}
	return b
}
