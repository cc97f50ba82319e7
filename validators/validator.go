package validators

import (
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts validator/v10 to echo.Validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a validator with the LinkUp struct rules registered
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterStructValidation(salaryRange, models.CreateJobRequest{}, models.Job{})
	return &CustomValidator{validator: v}
}

// Validate validates a struct by its validate tags
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func salaryRange(sl validator.StructLevel) {
	var lo, hi *int
	switch v := sl.Current().Interface().(type) {
	case models.CreateJobRequest:
		lo, hi = v.SalaryMin, v.SalaryMax
	case models.Job:
		lo, hi = v.SalaryMin, v.SalaryMax
	default:
		return
	}
	if lo != nil && hi != nil && *lo > *hi {
		sl.ReportError(hi, "salary_max", "SalaryMax", "gtefield", "SalaryMin")
	}
}
