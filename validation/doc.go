// Package validation validates configuration and pipeline definitions.
//
// Struct tag validation uses go-playground/validator:
//
//	type Config struct {
//	    MaxWorkers int `validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// Definitions are checked programmatically, collecting every problem
// before failing:
//
//	v := validation.New()
//	v.Min("steps[2].parallel", rails, 1)
//	v.Check(parallelSeen, "steps[3].runOn", "requires a preceding parallel step")
//	err := v.Err(errors.ErrCodeInvalidPipeline)
//
// Both return *errors.AppError with the failing fields in Details["fields"].
package validation
