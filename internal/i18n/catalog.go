// Package i18n holds the localized text used across the platform: AI prompts,
// fallback messages shown when an AI provider is unavailable, in-app
// notification copy and email copy. Catalogs are flat YAML files embedded in
// the binary, one per language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when a request names no supported language and as
// the fallback for keys missing from another catalog.
const DefaultLanguage = "en"

//go:embed locales
var localesFS embed.FS

// Catalog resolves message keys to localized text.
type Catalog struct {
	messages  map[string]map[string]string
	supported []string
	matcher   language.Matcher
}

// New loads the catalogs embedded in the binary.
func New() (*Catalog, error) {
	sub, err := fs.Sub(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded locales: %w", err)
	}
	return Load(sub)
}

// Load reads every <lang>.yaml file at the root of fsys. The default language
// catalog must be present.
func Load(fsys fs.FS) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	messages := make(map[string]map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".yaml")

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", entry.Name(), err)
		}
		table, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", entry.Name(), err)
		}
		messages[lang] = table
	}

	if _, ok := messages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("missing %s locale", DefaultLanguage)
	}

	return newCatalog(messages), nil
}

func parse(data []byte) (map[string]string, error) {
	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	if table == nil {
		table = map[string]string{}
	}
	return table, nil
}

func newCatalog(messages map[string]map[string]string) *Catalog {
	supported := make([]string, 0, len(messages))
	for lang := range messages {
		if lang != DefaultLanguage {
			supported = append(supported, lang)
		}
	}
	sort.Strings(supported)
	// The matcher falls back to its first tag.
	supported = append([]string{DefaultLanguage}, supported...)

	tags := make([]language.Tag, 0, len(supported))
	for _, lang := range supported {
		tags = append(tags, language.Make(lang))
	}

	return &Catalog{
		messages:  messages,
		supported: supported,
		matcher:   language.NewMatcher(tags),
	}
}

// Supported lists the loaded languages, default first.
func (c *Catalog) Supported() []string {
	out := make([]string, len(c.supported))
	copy(out, c.supported)
	return out
}

// Has reports whether lang has a catalog of its own.
func (c *Catalog) Has(lang string) bool {
	_, ok := c.messages[lang]
	return ok
}

// T returns the text for key in lang, formatted with args. Missing keys fall
// back to the default language and then to the key itself.
func (c *Catalog) T(lang, key string, args ...any) string {
	format, ok := c.lookup(lang, key)
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	if table, ok := c.messages[c.Normalize(lang)]; ok {
		if s, ok := table[key]; ok {
			return s, true
		}
	}
	s, ok := c.messages[DefaultLanguage][key]
	return s, ok
}

// Normalize maps a language code such as "ko-KR" or "ES" to a supported
// language, or to DefaultLanguage.
func (c *Catalog) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := c.messages[lang]; ok {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	return c.match(tag)
}

// Match picks the best supported language for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	return c.match(tags...)
}

func (c *Catalog) match(tags ...language.Tag) string {
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLanguage
	}
	return c.supported[index]
}
