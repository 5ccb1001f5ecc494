package handler

import (
	"net/http"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"golang.org/x/text/language"
)

var matcher = language.NewMatcher(domain.SupportedLanguages)

// requestLanguage picks the response language from Accept-Language. Spanish
// is the fallback.
func requestLanguage(r *http.Request) language.Tag {
	if r == nil {
		return domain.SupportedLanguages[0]
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return domain.SupportedLanguages[0]
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return domain.SupportedLanguages[0]
	}
	return domain.SupportedLanguages[index]
}
