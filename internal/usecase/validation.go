package usecase

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ScheduleInput is the caller-supplied part of a schedule. Nil pointers mean
// "not provided": create falls back to defaults, update keeps the stored value.
type ScheduleInput struct {
	Name             string              `field:"name"                  validate:"required,notblank,max=256"`
	Description      string              `field:"description"           validate:"max=2048"`
	Playlist         string              `field:"playlist"              validate:"required,max=256"`
	Enabled          *bool               `field:"enabled"`
	Priority         *int                `field:"priority"              validate:"omitempty,min=1"`
	Days             []string            `field:"recurrence.days"       validate:"required,min=1,dive,weekday"`
	StartTime        string              `field:"recurrence.start_time" validate:"required,hhmm"`
	EndTime          string              `field:"recurrence.end_time"   validate:"required,hhmm"`
	ConflictBehavior string              `field:"conflict_behavior"     validate:"omitempty,oneof=block ignore"`
	PostActions      *domain.PostActions `field:"post_actions"`
	CreatedBy        string              `field:"-"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("field")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}

// validateInput checks field-level rules and the start < end invariant, and
// returns the parsed recurrence when everything holds.
func (u *ScheduleUsecase) validateInput(in ScheduleInput) (domain.Recurrence, error) {
	fields := map[string]string{}

	if err := u.validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return domain.Recurrence{}, fmt.Errorf("validate schedule: %w", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	var rec domain.Recurrence
	if _, bad := fields["recurrence.days"]; !bad && !hasPrefix(fields, "recurrence.days[") {
		for _, d := range in.Days {
			w, _ := domain.ParseWeekday(d)
			rec.Days = append(rec.Days, w)
		}
		rec.Days = domain.NormalizeDays(rec.Days)
	}
	start, startErr := domain.ParseTimeOfDay(in.StartTime)
	end, endErr := domain.ParseTimeOfDay(in.EndTime)
	if startErr == nil && endErr == nil && start >= end {
		fields["recurrence.end_time"] = "must be later than start_time"
	}
	rec.StartTime, rec.EndTime = start, end

	if len(fields) > 0 {
		return domain.Recurrence{}, &domain.ValidationError{Fields: fields}
	}
	return rec, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "recurrence.days" {
			return "at least one day must be selected"
		}
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "at least one day must be selected"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "hhmm":
		return "invalid time format (HH:MM expected)"
	case "weekday":
		return "invalid day (mon..sun or 0..6 expected)"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

func hasPrefix(fields map[string]string, prefix string) bool {
	for k := range fields {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
