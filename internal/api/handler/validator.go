package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/credential-service/internal/core/domain"
)

const passwordTag = "password"

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v      *validator.Validate
	policy domain.PasswordPolicy
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// Fields tagged `validate:"password"` are checked against policy.
func NewValidator(policy domain.PasswordPolicy) *echoValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation(passwordTag, func(fl validator.FieldLevel) bool {
		return policy.Check(fl.Field().String()) == nil
	})
	return &echoValidator{v: v, policy: policy}
}

// Validate satisfies the echo.Validator interface. Only the first violated
// rule is reported, as a *domain.ValidationError.
func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return domain.NewValidationError(fe.Field(), ev.fieldError(fe))
	}
	return err
}

// fieldError converts a single ValidationError into a human-readable message.
func (ev *echoValidator) fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s length must be less than or equal to %s characters long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case passwordTag:
		if rerr := ev.policy.Check(fmt.Sprint(fe.Value())); rerr != nil {
			return rerr.Message
		}
		return field + " does not satisfy the password policy"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}
