package booking

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"agendafacil/internal/model"
)

var (
	nameRegex     = regexp.MustCompile(`^[\p{L}\s\-']+$`)
	phoneRegex    = regexp.MustCompile(`^(\(\d{2}\)\s\d{4,5}-\d{4}|\d{10,11})$`)
	slotTimeRegex = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slot_time", func(fl validator.FieldLevel) bool {
		return slotTimeRegex.MatchString(fl.Field().String())
	})
	return v
}

// BookingRequest is a client's booking submission.
type BookingRequest struct {
	// SessionID keys the rate limiter; it never reaches the store.
	SessionID      string `json:"-"`
	BusinessID     string `json:"business_id" validate:"required"`
	ServiceID      string `json:"service_id" validate:"required"`
	ProfessionalID string `json:"professional_id,omitempty"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string `json:"time" validate:"required,slot_time"`
	ClientName     string `json:"client_name" validate:"required,min=2,max=100,person_name"`
	ClientPhone    string `json:"client_phone" validate:"required,max=20,br_phone"`
	ClientEmail    string `json:"client_email,omitempty" validate:"omitempty,max=255,email"`
}

// Normalize trims and sanitizes free-text fields in place.
func (r *BookingRequest) Normalize() {
	r.BusinessID = strings.TrimSpace(r.BusinessID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.ProfessionalID = strings.TrimSpace(r.ProfessionalID)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.ClientName = SanitizeName(r.ClientName)
	r.ClientPhone = SanitizePhone(r.ClientPhone)
	r.ClientEmail = strings.ToLower(strings.TrimSpace(r.ClientEmail))
}

// Validate checks every field and reports the first failure as a
// *model.ValidationError.
func (r *BookingRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return model.NewValidationError("request", err.Error())
	}
	return nil
}

// parsed returns the typed date and time of a validated request.
func (r *BookingRequest) parsed() (time.Time, model.TimeOfDay, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return time.Time{}, 0, model.NewValidationError("date", "must be YYYY-MM-DD")
	}
	t, err := model.ParseTimeOfDay(r.Time)
	if err != nil {
		return time.Time{}, 0, model.NewValidationError("time", "must be HH:MM")
	}
	return date, t, nil
}

func fieldError(fe validator.FieldError) *model.ValidationError {
	field := fe.Field()
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must have at least " + fe.Param() + " characters"
	case "max":
		reason = "must have at most " + fe.Param() + " characters"
	case "person_name":
		reason = "may only contain letters, spaces, hyphens and apostrophes"
	case "br_phone":
		reason = "must be (XX) XXXXX-XXXX or 10-11 digits"
	case "email":
		reason = "must be a valid email address"
	case "datetime":
		reason = "must be YYYY-MM-DD"
	case "slot_time":
		reason = "must be HH:MM"
	default:
		reason = "is invalid"
	}
	return model.NewValidationError(field, reason)
}

// SanitizeName trims and collapses internal whitespace.
func SanitizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// SanitizePhone drops everything except digits, parentheses, spaces and
// hyphens, then trims the result.
func SanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '(' || r == ')' || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
