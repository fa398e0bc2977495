// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package ptrutils

func PtrTo[T any](value T) *T {
	return &value
}

// ValueOr returns the pointed-to value, or fallback if the pointer is nil.
func ValueOr[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}
