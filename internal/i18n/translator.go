// Package i18n serves the localized strings used in email bodies.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used for unknown codes, including the "OT" (other)
// preference.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves dot-separated keys against per-language catalogues.
type Translator struct {
	catalogues map[string]map[string]string
	matcher    language.Matcher
	tags       []language.Tag
	logger     *zap.Logger

	mu      sync.Mutex
	missing map[string]bool
}

// New loads the embedded catalogues.
func New(logger *zap.Logger) (*Translator, error) {
	return Load(embedded, "locales", logger)
}

// Load reads every <lang>.yaml file in dir of fsys.
func Load(fsys fs.FS, dir string, logger *zap.Logger) (*Translator, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	t := &Translator{
		catalogues: make(map[string]map[string]string),
		logger:     logger,
		missing:    make(map[string]bool),
	}

	// default first so the matcher falls back to it
	tags := []language.Tag{language.Make(DefaultLanguage)}

	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		lang := strings.ToLower(strings.TrimSuffix(entry.Name(), ext))

		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", lang, err)
		}

		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}

		flat := make(map[string]string)
		flatten("", tree, flat)
		t.catalogues[lang] = flat

		if lang != DefaultLanguage {
			tags = append(tags, language.Make(lang))
		}
	}

	if _, ok := t.catalogues[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("locales: missing default language %q", DefaultLanguage)
	}

	t.tags = tags
	t.matcher = language.NewMatcher(tags)
	return t, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Resolve maps a stored language code ("EN", "es-MX", "OT") to a loaded catalogue.
func (t *Translator) Resolve(code string) string {
	tag, err := language.Parse(strings.ToLower(code))
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	base, _ := t.tags[idx].Base()
	return base.String()
}

// T returns the translation of key, falling back to the default language
// and then to the key itself.
func (t *Translator) T(lang, key string) string {
	resolved := t.Resolve(lang)
	if v, ok := t.catalogues[resolved][key]; ok {
		return v
	}
	if v, ok := t.catalogues[DefaultLanguage][key]; ok {
		return v
	}

	t.mu.Lock()
	if !t.missing[key] {
		t.missing[key] = true
		t.logger.Warn("missing translation", zap.String("key", key), zap.String("lang", resolved))
	}
	t.mu.Unlock()
	return key
}

// Languages lists the loaded catalogue codes.
func (t *Translator) Languages() []string {
	out := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		base, _ := tag.Base()
		out = append(out, base.String())
	}
	return out
}
