// Package i18n provides lookup of translation strings for the view layer.
//
// Translations live in JSON files, one per language. Nested objects are
// flattened into dot-separated keys: {"nav": {"home": "Home"}} becomes
// "nav.home".
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator looks up translation strings by key.
type Translator struct {
	messages map[string]string
}

// New loads the embedded translations for the given language.
func New(lang string) (*Translator, error) {
	sub, err := fs.Sub(localeFS, "locales")
	if err != nil {
		return nil, err
	}

	return NewFromFS(sub, lang)
}

// NewFromFS loads translations for the given language from a file system
// containing {lang}.json files.
func NewFromFS(fsys fs.FS, lang string) (*Translator, error) {
	data, err := fs.ReadFile(fsys, lang+".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read translations for %q: %w", lang, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse translations for %q: %w", lang, err)
	}

	messages := make(map[string]string)
	if err := flatten("", raw, messages); err != nil {
		return nil, fmt.Errorf("invalid translations for %q: %w", lang, err)
	}

	return &Translator{messages: messages}, nil
}

// T returns the translation for the given key. Unknown keys are returned
// as-is, a missing translation should not break a page.
func (t *Translator) T(key string) string {
	if msg, ok := t.messages[key]; ok {
		return msg
	}
	return key
}

func flatten(prefix string, raw map[string]any, out map[string]string) error {
	for key, val := range raw {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		switch v := val.(type) {
		case string:
			out[full] = v
		case map[string]any:
			if err := flatten(full, v, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %q is neither a string nor an object", full)
		}
	}

	return nil
}
