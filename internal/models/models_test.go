package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidLanguageCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"pt_br", true},
		{"en_us", true},
		{"PT_BR", false},
		{"pt-br", false},
		{"pt", false},
		{"pt_bra", false},
		{"", false},
		{"p1_br", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidLanguageCode(tt.code))
		})
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"pt-BR", "pt_br", false},
		{"pt_BR", "pt_br", false},
		{"en_us", "en_us", false},
		{"PT-br", "pt_br", false},
		{"pt", "pt_br", false},
		{"en", "en_us", false},
		{"zh_Hans_CN", "zh_cn", false},
		{" es ", "es_es", false},
		{"", "", true},
		{"xx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeLocale(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslationValidate(t *testing.T) {
	valid := &Translation{Namespace: "app", Key: "hello", Language: "pt_br", Text: "Olá"}
	assert.NoError(t, valid.Validate())

	missing := &Translation{Key: "hello", Language: "pt_br"}
	assert.Error(t, missing.Validate())

	badLang := &Translation{Namespace: "app", Key: "hello", Language: "pt-BR"}
	assert.Error(t, badLang.Validate())

	noOther := &Translation{
		Namespace: "shop", Key: "items", Language: "en_us",
		Plurals: PluralForms{PluralOne: "1 item"},
	}
	assert.Error(t, noOther.Validate())

	withOther := &Translation{
		Namespace: "shop", Key: "items", Language: "en_us",
		Plurals: PluralForms{PluralOne: "1 item", PluralOther: "{count} items"},
	}
	assert.NoError(t, withOther.Validate())
}

func TestPluralForm(t *testing.T) {
	tr := &Translation{
		Namespace: "shop", Key: "items", Language: "en_us",
		Text: "items",
		Plurals: PluralForms{
			PluralOne:   "1 item",
			PluralOther: "{count} items",
		},
	}

	assert.Equal(t, "1 item", tr.PluralForm(PluralOne))
	assert.Equal(t, "{count} items", tr.PluralForm(PluralFew))

	scalar := &Translation{Namespace: "app", Key: "hello", Language: "en_us", Text: "Hello"}
	assert.Equal(t, "Hello", scalar.PluralForm(PluralOne))
}

func TestSyncResultLifecycle(t *testing.T) {
	r := NewSyncResult(OpUpload, "app")
	assert.Equal(t, SyncRunning, r.Status)
	assert.NotEmpty(t, r.ID)

	r.Uploaded = 3
	r.Complete(SyncSuccess)
	assert.Equal(t, SyncSuccess, r.Status)
	assert.False(t, r.CompletedAt.IsZero())

	f := NewSyncResult(OpDownload, "app").Fail(assert.AnError)
	assert.Equal(t, SyncFailed, f.Status)
	assert.Len(t, f.Errors, 1)
}
