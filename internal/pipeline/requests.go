package pipeline

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/service-agreement/backend/internal/contract"
)

type IntakeRequest struct {
	UserDescription string `json:"user_description" validate:"required,max=8000"`
	Locale          string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	DefaultCurrency string `json:"default_currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

func (r *IntakeRequest) applyDefaults() {
	r.UserDescription = strings.TrimSpace(r.UserDescription)
	if r.Locale == "" {
		r.Locale = contract.DefaultLocale
	}
	if r.DefaultCurrency == "" {
		r.DefaultCurrency = contract.DefaultCurrency
	}
}

type GenerateRequest struct {
	Brief              *contract.Brief           `json:"brief"`
	Options            *contract.GenerateOptions `json:"options,omitempty"`
	KbItems            []contract.KbItem         `json:"kb_items" validate:"omitempty,unique=ID,dive"`
	UserDescriptionRaw string                    `json:"user_description_raw,omitempty" validate:"max=8000"`
}

type OptimizeRequest struct {
	ContractMetadata map[string]any    `json:"contract_metadata"`
	Clause           contract.Clause   `json:"clause"`
	UserNote         string            `json:"user_note" validate:"required,max=4000"`
	KbItems          []contract.KbItem `json:"kb_items,omitempty" validate:"omitempty,unique=ID,dive"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// checkInput validates req and converts every violation into one InputError.
func checkInput(req any) error {
	err := inputValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return &InputError{Fields: fields}
}

// fieldPath drops the struct name from a validator namespace:
// "GenerateRequest.brief.service_type" becomes "brief.service_type".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
