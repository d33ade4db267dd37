package ui

import "github.com/fatih/color"

var (
	ErrorColor  = color.New(color.FgRed).SprintFunc()
	HeaderColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	DetailColor = color.New(color.FgHiBlack).SprintFunc()
)
