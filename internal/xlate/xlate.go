// Package xlate is the translation shim behind most error and log
// messages in this module (the word and isa sentinels do not use it):
// callers format with an en-US Sprintf reference
// and get back a string in the host's locale.
package xlate

import (
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("modelmachine: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// From translates an en-US Sprintf format plus its arguments into the
// host locale.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
