package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs a professional ASCII art banner for Arbor.
func PrintBanner() {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Green/Teal)
	s1 := termenv.String("   __ _ _ __| |__   ___  _ __ ").Foreground(p.Color("#4ade80"))
	s2 := termenv.String("  / _` | '__| '_ \\ / _ \\| '__|").Foreground(p.Color("#34d399"))
	s3 := termenv.String(" | (_| | |  | |_) | (_) | |   ").Foreground(p.Color("#2dd4bf"))
	s4 := termenv.String("  \\__,_|_|  |_.__/ \\___/|_|   ").Foreground(p.Color("#22d3ee"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println()
}
