package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// tesseractOverrides covers traineddata names that are not plain ISO 639-3.
var tesseractOverrides = map[string]string{
	"zh":      "chi_sim",
	"zh-Hans": "chi_sim",
	"zh-Hant": "chi_tra",
}

// TesseractLanguages converts BCP 47 hints ("en", "de") to tesseract
// traineddata names ("eng", "deu").
func TesseractLanguages(hints []string) ([]string, error) {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if code, ok := tesseractOverrides[h]; ok {
			out = append(out, code)
			continue
		}
		tag, err := language.Parse(h)
		if err != nil {
			return nil, fmt.Errorf("invalid language hint %q: %w", h, err)
		}
		base, conf := tag.Base()
		if conf == language.No {
			return nil, fmt.Errorf("unknown language hint %q", h)
		}
		out = append(out, base.ISO3())
	}
	return out, nil
}

// ValidateLanguages checks hints for the engine they will be sent to.
// Tesseract needs every hint to map to traineddata. The prompt engines and
// remote servers take hints as given, so only blank hints are rejected.
func ValidateLanguages(name string, hints []string) error {
	if strings.EqualFold(name, NameTesseract) {
		_, err := TesseractLanguages(hints)
		return err
	}
	for i, h := range hints {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("empty language hint at position %d", i)
		}
	}
	return nil
}

// LanguageNames renders hints as English language names for prompts.
// Unparseable hints are passed through verbatim.
func LanguageNames(hints []string) string {
	names := make([]string, 0, len(hints))
	for _, h := range hints {
		tag, err := language.Parse(h)
		if err != nil {
			names = append(names, h)
			continue
		}
		if n := display.English.Tags().Name(tag); n != "" {
			names = append(names, n)
			continue
		}
		names = append(names, h)
	}
	return strings.Join(names, ", ")
}
