package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractLanguages(t *testing.T) {
	tests := []struct {
		name    string
		hints   []string
		want    []string
		wantErr bool
	}{
		{"english", []string{"en"}, []string{"eng"}, false},
		{"english and german", []string{"en", "de"}, []string{"eng", "deu"}, false},
		{"region tag", []string{"en-GB"}, []string{"eng"}, false},
		{"simplified chinese", []string{"zh"}, []string{"chi_sim"}, false},
		{"traditional chinese", []string{"zh-Hant"}, []string{"chi_tra"}, false},
		{"blank entries skipped", []string{"", " "}, []string{}, false},
		{"garbage", []string{"not a tag!"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TesseractLanguages(tt.hints)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateLanguages(t *testing.T) {
	tests := []struct {
		engine  string
		hints   []string
		wantErr bool
	}{
		{NameTesseract, []string{"en", "de"}, false},
		{NameTesseract, []string{"not a tag"}, true},
		{"Tesseract", []string{"not a tag"}, true},
		{NameOpenAI, []string{"not a tag"}, false},
		{NameGemini, []string{"Plattdeutsch"}, false},
		{NameRemote, []string{"en"}, false},
		{NameRemote, []string{""}, true},
		{NameOpenAI, nil, false},
	}

	for _, tt := range tests {
		err := ValidateLanguages(tt.engine, tt.hints)
		if tt.wantErr {
			assert.Error(t, err, "%s %v", tt.engine, tt.hints)
		} else {
			assert.NoError(t, err, "%s %v", tt.engine, tt.hints)
		}
	}
}

func TestLanguageNames(t *testing.T) {
	assert.Equal(t, "English, German", LanguageNames([]string{"en", "de"}))
	assert.Equal(t, "not a tag!", LanguageNames([]string{"not a tag!"}))
	assert.Equal(t, "", LanguageNames(nil))
}
