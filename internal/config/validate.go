package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/rbright/sauti/internal/locale"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")

	validate = validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report config keys instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, errors.New(fieldMessage(fieldErrs[0]))
		}
		return nil, err
	}

	warnings := make([]Warning, 0)

	switch cfg.Engine {
	case "deepgram":
		if strings.TrimSpace(cfg.Deepgram.APIKey) == "" {
			warnings = append(warnings, Warning{Message: "deepgram.api_key is empty; speech recognition will report as unsupported"})
		}
	case "scripted":
		if strings.TrimSpace(cfg.Script.Path) == "" {
			return nil, fmt.Errorf("script.path must not be empty when engine=scripted")
		}
	}

	if lang := strings.TrimSpace(cfg.ASR.Language); lang != "" {
		if _, ok := locale.Normalize(lang); !ok {
			return nil, fmt.Errorf("asr.language %q is not a valid language tag", lang)
		}
	}

	for _, keyword := range cfg.Deepgram.Keywords {
		if err := validateKeyword(keyword); err != nil {
			return nil, err
		}
	}

	if cfg.Output.Enable && len(cfg.Output.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("output.clipboard_cmd must not be empty when output.enable=true")
	}

	return warnings, nil
}

// validateKeyword accepts "term" or "term:boost".
func validateKeyword(keyword string) error {
	term, boost, hasBoost := strings.Cut(strings.TrimSpace(keyword), ":")
	if strings.TrimSpace(term) == "" {
		return fmt.Errorf("deepgram.keywords entry %q has an empty term", keyword)
	}
	if hasBoost {
		if _, err := strconv.ParseFloat(boost, 64); err != nil {
			return fmt.Errorf("deepgram.keywords entry %q has a non-numeric boost", keyword)
		}
	}
	return nil
}

// fieldMessage renders a validation failure with the dotted config key.
func fieldMessage(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	msg := fe.Translate(translator)
	if strings.HasPrefix(msg, fe.Field()) {
		return key + strings.TrimPrefix(msg, fe.Field())
	}
	return key + ": " + msg
}
