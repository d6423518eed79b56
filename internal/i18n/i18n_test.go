package i18n_test

import (
	"testing"
	"testing/fstest"

	"github.com/avdeyev/roster/internal/i18n"
)

func Test_Translator_T(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json": &fstest.MapFile{
			Data: []byte(`{
				"greeting": "Hello",
				"nav": {
					"home": "Home",
					"deep": { "key": "Value" }
				}
			}`),
		},
	}

	tr, err := i18n.NewFromFS(fsys, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]string{
		"greeting":     "Hello",
		"nav.home":     "Home",
		"nav.deep.key": "Value",
		"nav.missing":  "nav.missing", // unknown keys fall back to the key itself.
	}

	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			got := tr.T(key)
			if got != want {
				t.Errorf("got %q want %q", got, want)
			}
		})
	}
}

func Test_NewFromFS(t *testing.T) {
	t.Run("fail, missing language", func(t *testing.T) {
		_, err := i18n.NewFromFS(fstest.MapFS{}, "nl")
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}
	})

	t.Run("fail, invalid json", func(t *testing.T) {
		fsys := fstest.MapFS{
			"en.json": &fstest.MapFile{Data: []byte(`{`)},
		}

		_, err := i18n.NewFromFS(fsys, "en")
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}
	})

	t.Run("fail, non-string leaf", func(t *testing.T) {
		fsys := fstest.MapFS{
			"en.json": &fstest.MapFile{Data: []byte(`{"count": 42}`)},
		}

		_, err := i18n.NewFromFS(fsys, "en")
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}
	})

	t.Run("ok, embedded english translations", func(t *testing.T) {
		tr, err := i18n.New("en")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := tr.T("nav.home"); got == "nav.home" {
			t.Errorf("expected embedded translation for nav.home, got fallback")
		}
	})
}
