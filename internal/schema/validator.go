package schema

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// sensorIDPattern defines the valid format for sensor identifiers.
// Identifiers must be lowercase, start with a letter, and use dashes as
// separators. Examples: "tread-left-1", "sidewall-3".
var sensorIDPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Validator validates sensor specs and damage events against the canonical
// schema.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("sensor_id", func(fl validator.FieldLevel) bool {
		return sensorIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// ValidateSpec validates a sensor spec. Returns an error if validation fails.
func (v *Validator) ValidateSpec(spec *SensorSpec) error {
	if err := v.validate.Struct(spec); err != nil {
		return fmt.Errorf("sensor spec validation failed: %w", err)
	}
	return nil
}

// ValidateDamage validates a damage event against the schema. The onset tick
// bound against the current simulation tick is checked by the session, not
// here.
func (v *Validator) ValidateDamage(event *DamageEvent) error {
	if err := v.validate.Struct(event); err != nil {
		return fmt.Errorf("damage event validation failed: %w", err)
	}
	if event.Profile != nil && event.Profile.BaselineFactor <= 0 {
		return fmt.Errorf("damage profile baseline factor must be positive, got %g", event.Profile.BaselineFactor)
	}
	return nil
}

// ValidSensorID checks if an identifier matches the required format.
func ValidSensorID(id string) bool {
	return sensorIDPattern.MatchString(id)
}
