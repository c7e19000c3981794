package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gomarket_import/config"
	"gomarket_import/internal/app"
	"gomarket_import/internal/auth"
	"gomarket_import/internal/importer"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	connectionID := flag.String("import", "", "run one import for the connection and exit")
	aggregates := flag.String("aggregates", "", "comma separated aggregate indexes for -import")
	from := flag.String("from", "", "period start for -import, YYYY-MM-DD")
	to := flag.String("to", "", "period end for -import, YYYY-MM-DD")
	issueRole := flag.String("issue-token", "", "print an API token for the role (operator, admin) and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *issueRole != "" {
		token, err := auth.IssueToken(cfg.Auth.JWTSecret, "cli", *issueRole, 30*24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := app.NewImportServer(cfg, nil)

	if *connectionID != "" {
		req := importer.Request{ConnectionID: *connectionID}
		for _, a := range strings.Split(*aggregates, ",") {
			if a = strings.TrimSpace(a); a != "" {
				req.Aggregates = append(req.Aggregates, a)
			}
		}
		if req.DateFrom, err = parseDate(*from); err != nil {
			log.Fatalf("-from: %v", err)
		}
		if req.DateTo, err = parseDate(*to); err != nil {
			log.Fatalf("-to: %v", err)
		}
		snapshot, err := server.ImportOnce(ctx, req)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		out, _ := json.MarshalIndent(snapshot, "", "  ")
		fmt.Println(string(out))
		return
	}

	if err := server.Run(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
