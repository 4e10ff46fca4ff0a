// Package forms porte les erreurs de validation par champ renvoyées au client
// avec sa saisie.
package forms

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Errors associe un chemin de champ ("email", "products[0].quantity") à ses messages.
type Errors map[string][]string

func (e Errors) Add(field, message string) Errors {
	e[field] = append(e[field], message)
	return e
}

func (e Errors) Empty() bool { return len(e) == 0 }

func Field(field, message string) Errors {
	return Errors{field: {message}}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator retourne le validateur partagé, qui nomme les champs par leur tag json.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate valide s ; une erreur non liée aux champs est retournée telle quelle.
func Validate(s interface{}) (Errors, error) {
	err := Validator().Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := Errors{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe.Namespace()), message(fe))
	}
	return out, nil
}

// fieldPath retire le nom de la structure racine du namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "Required"
	case "email":
		return "Invalid email"
	case "min":
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must contain at least " + fe.Param() + " item(s)"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "eqfield":
		return "Does not match"
	default:
		return "Invalid value"
	}
}
