package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"mauassist/internal/config"
)

func main() {
	path := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("Configuration loaded successfully!")
	fmt.Printf("Server: %s:%d\n", cfg.Server.BindAddress, cfg.Server.Port)
	fmt.Printf("Database: %s\n", describeDatabase(cfg.Database))
	fmt.Printf("Log Level: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Printf("Registration Open: %v\n", cfg.Auth.AllowRegistration)
	fmt.Printf("Knowledge File: %s\n", orDefault(cfg.Knowledge.File, "built-in"))
	fmt.Printf("Import Folder: %s\n", orDefault(cfg.Knowledge.ImportFolder, "disabled"))
	fmt.Printf("Max File Size: %d MB\n", cfg.Guardrails.MaxFileSizeMB)
	fmt.Printf("Allowed Extensions: %s\n", strings.Join(cfg.Guardrails.AllowedExtensions, ", "))
	fmt.Printf("Draft Provider: %s\n", orDefault(cfg.LLM.Type, "disabled"))
	if cfg.LLM.Type != "" {
		fmt.Printf("Draft Model: %s\n", orDefault(cfg.LLM.Model, "provider default"))
		fmt.Printf("API Key: %s\n", maskSecret(cfg.LLM.APIKey))
	}
}

func describeDatabase(db config.DatabaseConfig) string {
	if db.Driver == "postgres" {
		return "postgres (" + maskSecret(db.DSN) + ")"
	}
	return db.Driver + " (" + db.Path + ")"
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// maskSecret keeps the first four characters
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8)
}
