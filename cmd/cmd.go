// Package cmd provides the recall CLI commands.
//
// Commands:
//   - run: start the assistant on the console transport
//   - migrate: apply database migrations and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the recall CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "run":
		return runAssistant()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Recall - a personal memory assistant for your chats")
	fmt.Println()
	fmt.Println("Send it anything - notes, voice messages, photos, links,")
	fmt.Println("locations - and ask for it back later in plain language.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recall run         Start the assistant (console transport)")
	fmt.Println("  recall migrate     Apply database migrations and exit")
	fmt.Println("  recall --version   Show version information")
	fmt.Println("  recall --help      Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL connection URL")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.recall/config.yaml")
}
