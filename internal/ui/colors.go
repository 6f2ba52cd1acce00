// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides console output helpers shared by the bfdb commands.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Shared color printers. Disabled globally by InitColors when requested or
// when stdout is not a terminal.
var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Dim    = color.New(color.Faint)
	Bold   = color.New(color.Bold)
)

// InitColors configures global color output.
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section header followed by an underline.
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(underline(text))
}

// SubHeader prints a bold sub-section header.
func SubHeader(text string) {
	_, _ = Bold.Println(text)
}

// Label returns a bold label string, typically followed by a value.
func Label(text string) string {
	return Bold.Sprint(text)
}

// CountText formats an integer count for display.
func CountText(n int) string {
	return Bold.Sprintf("%d", n)
}

// DimText formats secondary information such as paths and durations.
func DimText(text string) string {
	return Dim.Sprint(text)
}

func underline(text string) string {
	line := make([]byte, len(text))
	for i := range line {
		line[i] = '='
	}
	return string(line)
}
