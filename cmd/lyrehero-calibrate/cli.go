package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#6B4EFF")
	mutedColor   = lipgloss.Color("#888888")
	successColor = lipgloss.Color("#00AA00")
	errorColor   = lipgloss.Color("#CC3333")
	textColor    = lipgloss.Color("#FFFFFF")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	keyStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginTop(1)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
)

func printBanner() {
	fmt.Println(titleStyle.Render("lyrehero-calibrate"))
}

func printSection(title string) {
	fmt.Println(headerStyle.Render(title))
}

func printInfo(key, value string) {
	fmt.Printf("%s %s\n", keyStyle.Render(key+":"), valueStyle.Render(value))
}

func printSuccess(message string) {
	fmt.Printf("%s %s\n", successStyle.Render("✓"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}
