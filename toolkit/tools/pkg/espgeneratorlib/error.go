// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package espgeneratorlib

type EspGeneratorError struct {
	name    string
	message string
}

func NewEspGeneratorError(name string, message string) *EspGeneratorError {
	return &EspGeneratorError{
		name:    name,
		message: message,
	}
}

func (e *EspGeneratorError) Name() string {
	return e.name
}

func (e *EspGeneratorError) Error() string {
	return e.message
}

// GetAllEspGeneratorErrors walks the wrapped error tree depth first and returns every named error in it, outermost
// first.
func GetAllEspGeneratorErrors(err error) []*EspGeneratorError {
	var namedErrors []*EspGeneratorError
	collectEspGeneratorErrors(err, &namedErrors)
	return namedErrors
}

func collectEspGeneratorErrors(err error, namedErrors *[]*EspGeneratorError) {
	if err == nil {
		return
	}

	if namedError, ok := err.(*EspGeneratorError); ok {
		*namedErrors = append(*namedErrors, namedError)
	}

	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range wrapped.Unwrap() {
			collectEspGeneratorErrors(inner, namedErrors)
		}
	case interface{ Unwrap() error }:
		collectEspGeneratorErrors(wrapped.Unwrap(), namedErrors)
	}
}
