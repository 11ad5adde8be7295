// Package i18n formats user-facing messages for storyplay error codes.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Catalog maps error codes to localized message templates.
type Catalog struct {
	tag      language.Tag
	messages map[string]string
}

var catalogs = []*Catalog{enUSCatalog}

var matcher = language.NewMatcher([]language.Tag{
	language.AmericanEnglish,
})

// GetCatalog returns the catalog best matching the requested locale.
// Unknown or empty locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	tag, err := language.Parse(locale)
	if err != nil {
		return enUSCatalog
	}
	_, index, _ := matcher.Match(tag)
	return catalogs[index]
}

// Locale returns the BCP 47 tag for the catalog.
func (c *Catalog) Locale() string {
	return c.tag.String()
}

// Format renders the message template for code, substituting {{.Key}}
// placeholders from metadata. Unknown codes produce a generic message.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	template, ok := c.messages[code]
	if !ok {
		return c.messages[fallbackCode]
	}
	if len(metadata) == 0 {
		return template
	}
	pairs := make([]string, 0, len(metadata)*2)
	for key, value := range metadata {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
