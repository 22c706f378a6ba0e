// Package validation checks job options and media sources.
//
// Struct tag validation covers options and API bodies:
//
//	type Options struct {
//	    BeamSize int `json:"beam_size" validate:"gte=1,lte=10"`
//	}
//	err := validation.Validate(opts)
//
// The programmatic Validator covers checks that need the filesystem:
//
//	v := validation.New()
//	size, v := v.RegularFile("source", path)
//	v.Extension("source", path, allowed).MaxBytes("source", size, limit)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
