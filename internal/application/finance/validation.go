package finance

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// NewValidator returns a validator that knows the Bangladesh-specific tags
// bd_mobile, tin and bin, and reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("bd_mobile", func(fl validator.FieldLevel) bool {
		return valueobject.IsBangladeshMobile(fl.Field().String())
	})
	_ = v.RegisterValidation("tin", func(fl validator.FieldLevel) bool {
		return valueobject.IsValidTIN(fl.Field().String())
	})
	_ = v.RegisterValidation("bin", func(fl validator.FieldLevel) bool {
		return valueobject.IsValidBIN(fl.Field().String())
	})
	return v
}

// validateCommand converts validator failures into a VALIDATION DomainError
// with one detail entry per field
func validateCommand(v *validator.Validate, cmd any) error {
	err := v.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.NewValidationError("INVALID_COMMAND", err.Error())
	}
	de := shared.NewValidationError("INVALID_COMMAND", "Command validation failed")
	for _, fe := range fieldErrs {
		de = de.WithDetail(fe.Namespace(), validationMessage(fe))
	}
	return de
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gtefield":
		return "must not be before " + fe.Param()
	case "bd_mobile":
		return "must be a Bangladesh mobile number"
	case "tin":
		return "must be a 12-digit TIN"
	case "bin":
		return "must be a 9 or 13 digit BIN"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
