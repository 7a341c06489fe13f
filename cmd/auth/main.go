package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/tokenauth/internal/auth/app"
)

const usage = `usage: auth [command]

commands:
  serve     run the HTTP service (default)
  cleanup   delete expired tokens once and exit
`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve", "cleanup":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if cmd == "cleanup" {
		deleted, err := application.RunCleanup(context.Background())
		if err != nil {
			log.Fatalf("cleanup failed: %v", err)
		}
		fmt.Printf("deleted %d expired tokens\n", deleted)
		return
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
