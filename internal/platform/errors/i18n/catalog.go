// Package i18n renders deck error codes as localized messages.
package i18n

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	i18ncatalog "github.com/louisbranch/deckledger/internal/platform/i18n/catalog"
)

// Catalog holds the parsed error templates for one locale.
type Catalog struct {
	locale    string
	templates map[apperrors.Code]*template.Template
	raw       map[apperrors.Code]string
}

var catalogs sync.Map // locale -> *Catalog

// GetCatalog returns the catalog for locale. Unknown locales share the base
// locale catalog.
func GetCatalog(locale string) *Catalog {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = i18ncatalog.BaseLocale
	}
	if c, ok := catalogs.Load(locale); ok {
		return c.(*Catalog)
	}
	resolved, messages := i18ncatalog.Default().Namespace(locale, i18ncatalog.NamespaceErrors)
	if c, ok := catalogs.Load(resolved); ok {
		return c.(*Catalog)
	}
	c, _ := catalogs.LoadOrStore(resolved, NewCatalog(resolved, messages))
	return c.(*Catalog)
}

// NewCatalog parses messages keyed by error code. Messages that fail to parse
// are kept verbatim.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	c := &Catalog{
		locale:    locale,
		templates: make(map[apperrors.Code]*template.Template, len(messages)),
		raw:       make(map[apperrors.Code]string, len(messages)),
	}
	for key, text := range messages {
		code := apperrors.Code(key)
		c.raw[code] = text
		if tmpl, err := template.New(key).Parse(text); err == nil {
			c.templates[code] = tmpl
		}
	}
	return c
}

// Locale returns the locale that supplied the messages.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code with metadata. Unknown codes render as
// the code itself; broken templates render as their source text.
func (c *Catalog) Format(code apperrors.Code, metadata map[string]string) string {
	raw, ok := c.raw[code]
	if !ok {
		return string(code)
	}
	tmpl, ok := c.templates[code]
	if !ok {
		return raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, metadata); err != nil {
		return raw
	}
	return sb.String()
}

// Localize formats each domain error in err as "<message> (<CODE>)", one per
// line, and reports false when err carries none.
func Localize(locale string, err error) (string, bool) {
	domainErrs := apperrors.All(err)
	if len(domainErrs) == 0 {
		return "", false
	}
	catalog := GetCatalog(locale)
	lines := make([]string, 0, len(domainErrs))
	for _, domainErr := range domainErrs {
		lines = append(lines, fmt.Sprintf("%s (%s)", catalog.Format(domainErr.Code, domainErr.Metadata), domainErr.Code))
	}
	return strings.Join(lines, "\n"), true
}
