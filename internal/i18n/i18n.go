// Package i18n resolves a request locale from a cookie and exposes a dotted
// key lookup over embedded message catalogs.
package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

const (
	DefaultLocale = "ja"
	CookieName    = "app_locale"
)

// SupportedLocales in presentation order.
var SupportedLocales = []string{"ja", "en"}

// Translator maps a dotted message key to its display string. Unknown keys
// come back unchanged so a missing entry renders as its key rather than
// breaking a page.
type Translator func(key string) string

// dictionaries holds one flat dotted-key map per locale, built once at
// package load. Flattening up front removes the per-lookup tree walk and the
// "non-container midway" edge case entirely.
var dictionaries = mustLoadDictionaries()

func mustLoadDictionaries() map[string]map[string]string {
	out := make(map[string]map[string]string, len(SupportedLocales))
	for _, locale := range SupportedLocales {
		raw, err := localeFS.ReadFile("locales/" + locale + ".yaml")
		if err != nil {
			panic(fmt.Sprintf("i18n: missing locale file for %q: %v", locale, err))
		}

		var nested map[string]any
		if err := yaml.Unmarshal(raw, &nested); err != nil {
			panic(fmt.Sprintf("i18n: invalid locale file for %q: %v", locale, err))
		}

		flat := map[string]string{}
		flatten("", nested, flat)
		out[locale] = flat
	}

	return out
}

func flatten(prefix string, node map[string]any, into map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		switch typed := value.(type) {
		case map[string]any:
			flatten(full, typed, into)
		case string:
			into[full] = typed
		default:
			into[full] = fmt.Sprint(typed)
		}
	}
}

// IsSupported reports whether the value names a known locale.
func IsSupported(locale string) bool {
	_, ok := dictionaries[locale]
	return ok
}

// Resolve maps any locale identifier onto a supported one.
func Resolve(locale string) string {
	if IsSupported(locale) {
		return locale
	}
	return DefaultLocale
}

// FromRequest reads the locale cookie, falling back to the default locale
// when the cookie is absent or names an unsupported locale.
func FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return DefaultLocale
	}
	return Resolve(cookie.Value)
}

// NewTranslator returns the lookup function for a locale.
func NewTranslator(locale string) Translator {
	dict := dictionaries[Resolve(locale)]
	return func(key string) string {
		if value, ok := dict[key]; ok {
			return value
		}
		return key
	}
}

// Keys returns every known key for a locale, sorted. Used by tests to assert
// catalog parity between locales.
func Keys(locale string) []string {
	dict := dictionaries[Resolve(locale)]
	keys := make([]string, 0, len(dict))
	for key := range dict {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
