package handler

import (
    "reflect"
    "strings"

    "github.com/go-playground/locales/en"
    ut "github.com/go-playground/universal-translator"
    "github.com/go-playground/validator/v10"
    en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
    validate   *validator.Validate
    translator ut.Translator
)

func init() {
    validate = validator.New(validator.WithRequiredStructEnabled())

    _en := en.New()
    uni := ut.New(_en, _en)
    translator, _ = uni.GetTranslator("en")
    _ = en_translations.RegisterDefaultTranslations(validate, translator)

    // report JSON field names, not Go ones
    validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
        name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
}

// fieldErrors flattens validation errors into field -> message.
func fieldErrors(errs validator.ValidationErrors) map[string]string {
    out := make(map[string]string, len(errs))
    for _, fe := range errs {
        out[fe.Field()] = fe.Translate(translator)
    }
    return out
}
