//go:build windows

// Package priv checks for the elevated privileges that hosts-file and
// process mutation require.
package priv

import (
	"golang.org/x/sys/windows"

	"github.com/enough/enough/internal/domain"
)

type Checker struct{}

func New() Checker { return Checker{} }

func (Checker) Check() error {
	if !windows.GetCurrentProcessToken().IsElevated() {
		return domain.ErrPermissionDenied
	}
	return nil
}
