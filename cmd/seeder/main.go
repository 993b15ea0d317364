//cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/config"
	"github.com/unclebandit/wsp-bulk-sender/internal/db"
	"github.com/unclebandit/wsp-bulk-sender/internal/logger"
)

var seedFiles = []string{
	"schema.sql",
	"channels.sql",
}

func main() {
	dir := flag.String("dir", "seed", "directory holding the seed files")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	for _, file := range seedFiles {
		path := filepath.Join(*dir, file)
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatal("failed to read seed file", zap.String("file", path), zap.Error(err))
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatal("failed to execute seed file", zap.String("file", path), zap.Error(err))
		}
		fmt.Printf("Seeded: %s\n", path)
	}

	fmt.Println("Database seeding completed successfully!")
}
