package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	UserID     string
	TeamID     string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{Timeout: 60 * time.Second}
	flag.StringVar(&cfg.APIBaseURL, "api", getEnv("API_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.TeamID, "team", os.Getenv("TEAM_ID"), "team id to play as")
	flag.StringVar(&cfg.UserID, "user", os.Getenv("USER_ID"), "user id; a new one is generated when empty")
	flag.Parse()

	if _, err := uuid.Parse(cfg.TeamID); err != nil {
		fmt.Fprintf(os.Stderr, "A team id is required. Use -team or TEAM_ID (huntctl create prints them).\n")
		os.Exit(1)
	}
	if cfg.UserID == "" {
		cfg.UserID = uuid.NewString()
		fmt.Printf("Playing as new user %s\n", cfg.UserID)
	}

	client := NewAPIClient(cfg.APIBaseURL, cfg.UserID, cfg.TeamID, &http.Client{Timeout: cfg.Timeout})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	ok := client.testConnection(ctx)
	cancel()
	if !ok {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
