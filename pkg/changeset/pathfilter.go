package changeset

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// AllLanguages disables the language allow list.
const AllLanguages = "all"

// DefaultSkipPrefixes are vendored or generated paths that carry no
// vocabulary of the project itself.
var DefaultSkipPrefixes = []string{
	"vendor/",
	"vendors/",
	"node_modules/",
	"package-lock.json",
	"Gopkg.lock",
	"go.sum",
}

// PathFilter decides which files contribute text. A nil *PathFilter
// allows everything.
type PathFilter struct {
	skipPrefixes []string
	skipVendor   bool
	languages    map[string]bool
}

// NewPathFilter creates a filter. With skipVendor, prefixes are skipped and
// enry's vendor heuristics apply. languages is an allow list of enry language
// names, case-insensitive; empty or containing "all" allows every language.
func NewPathFilter(skipVendor bool, prefixes, languages []string) *PathFilter {
	f := &PathFilter{skipVendor: skipVendor}

	if skipVendor {
		f.skipPrefixes = prefixes
	}

	for _, lang := range languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}

		if lang == AllLanguages {
			f.languages = nil

			break
		}

		if f.languages == nil {
			f.languages = map[string]bool{}
		}

		f.languages[lang] = true
	}

	return f
}

// AllowPath applies the prefix and vendor checks.
func (f *PathFilter) AllowPath(name string) bool {
	if f == nil || !f.skipVendor {
		return true
	}

	for _, prefix := range f.skipPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}

	return !enry.IsVendor(name)
}

// FiltersLanguage reports whether an allow list is set, i.e. whether
// AllowLanguage needs the detected language at all.
func (f *PathFilter) FiltersLanguage() bool {
	return f != nil && len(f.languages) > 0
}

// AllowLanguage reports whether a detected language passes the allow list.
// Undetected files only pass when there is no allow list.
func (f *PathFilter) AllowLanguage(lang string) bool {
	if !f.FiltersLanguage() {
		return true
	}

	return f.languages[strings.ToLower(lang)]
}

// DetectLanguage guesses the programming language of a file, first from its
// name and then from its content.
func DetectLanguage(name string, content []byte) string {
	base := path.Base(name)

	lang := enry.GetLanguage(base, nil)
	if lang == "" && len(content) > 0 {
		lang = enry.GetLanguage(base, content)
	}

	return lang
}
