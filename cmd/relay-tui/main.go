package main

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/qubitpulse/relay-server-rr/internal/config"
	"github.com/qubitpulse/relay-server-rr/internal/tui/app"
	"github.com/qubitpulse/relay-server-rr/internal/tui/client"
)

func main() {
	wsURL := flag.StringP("url", "u", fmt.Sprintf("ws://127.0.0.1:%d/", config.DefaultPort), "WebSocket URL of the relay server")
	logFile := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	if _, err := url.Parse(*wsURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --url: %v\n", err)
		os.Exit(2)
	}

	// The alt screen owns the terminal; logs go to a file or nowhere.
	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "relay-tui")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	conn := client.NewWSClient(*wsURL)
	defer conn.Close()

	p := tea.NewProgram(app.New(conn), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
