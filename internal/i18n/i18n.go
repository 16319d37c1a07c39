// Package i18n holds the message catalogs for user-facing strings and the
// Accept-Language negotiation used to pick one.
package i18n

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// PortugueseBR is the default locale.
	PortugueseBR = language.MustParse("pt-BR")
	// EnglishUS is the secondary locale.
	EnglishUS = language.MustParse("en-US")

	supported = []language.Tag{PortugueseBR, EnglishUS}
	matcher   = language.NewMatcher(supported)
)

func init() {
	register(PortugueseBR, ptBR)
	register(EnglishUS, enUS)
}

func register(tag language.Tag, messages map[string]string) {
	keys := make([]string, 0, len(messages))
	for key := range messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_ = message.SetString(tag, key, messages[key])
	}
}

// Default returns the fallback locale.
func Default() language.Tag {
	return PortugueseBR
}

// Supported returns the locales that have a catalog.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// ResolveTag picks the best supported locale for an Accept-Language header.
func ResolveTag(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return Default()
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default()
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default()
	}
	return supported[idx]
}

// T returns the message for key in the given locale. Unknown keys come back
// unchanged.
func T(tag language.Tag, key string) string {
	return message.NewPrinter(tag).Sprintf(key)
}

// Has reports whether key exists in the base catalog.
func Has(key string) bool {
	_, ok := ptBR[key]
	return ok
}
