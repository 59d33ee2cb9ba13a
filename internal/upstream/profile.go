package upstream

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/destinyjobs/portal/internal/apperr"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9 ]{8,20}$`)

// ProviderProfileUpdate is the writable part of a provider profile.
type ProviderProfileUpdate struct {
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Title      string   `json:"title"`
	Bio        string   `json:"bio"`
	Phone      string   `json:"phone"`
	CountryID  string   `json:"country_id"`
	RegionID   string   `json:"region_id"`
	Skills     []string `json:"skills"`
	HourlyRate float64  `json:"hourly_rate"`
}

// Validate checks required fields and formats. Failures come back as
// *apperr.ValidationError keyed by JSON field name.
func (u ProviderProfileUpdate) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.FirstName, validation.Required, validation.Length(1, 60)),
		validation.Field(&u.LastName, validation.Required, validation.Length(1, 60)),
		validation.Field(&u.Title, validation.Required, validation.Length(2, 120)),
		validation.Field(&u.Bio, validation.Length(0, 2000)),
		validation.Field(&u.Phone, validation.Match(phoneRe)),
		validation.Field(&u.CountryID, validation.Required),
		validation.Field(&u.Skills, validation.Length(0, 30)),
		validation.Field(&u.HourlyRate, validation.Min(0.0)),
	)
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for name, fe := range fieldErrs {
			fields[name] = fe.Error()
		}
		return &apperr.ValidationError{Fields: fields}
	}
	return err
}
