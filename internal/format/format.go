// Package format renders minor-unit amounts as localized currency strings.
package format

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"groupspend/internal/core"
)

// DefaultLocale is used when a viewer's locale is missing or unparseable.
var DefaultLocale = language.English

// Formatter formats money for one viewer locale. It is safe for concurrent use.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Formatter for tag.
func New(tag language.Tag) *Formatter {
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}
}

// ForLocale parses a BCP 47 locale string ("en", "de-DE", "it_IT").
func ForLocale(locale string) *Formatter {
	return New(ParseLocale(locale))
}

// ParseLocale resolves locale to a language tag, falling back to DefaultLocale.
func ParseLocale(locale string) language.Tag {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLocale
	}
	return tag
}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Money renders m in major units with the currency sign, e.g. "$1,234.50"
// for English or "€1.234,50" for German.
func (f *Formatter) Money(m core.Money, c core.Currency) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := core.Money{Cents: cents}.MajorFloat()
	return sign + c.Symbol() + f.printer.Sprintf("%.2f", amount)
}
