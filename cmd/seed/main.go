// Package main provides a tool to seed the database with test bookmark data.
//
// This reads existing users from the database and creates realistic bookmarks
// with tags and version history to test the sync index and diff endpoints.
//
// Usage:
//
//	DB_PATH=~/HiveCache/data/db go run ./cmd/seed
//	DB_PATH=~/HiveCache/data/db go run ./cmd/seed --count 200
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/bookmarkhive/hivecache/internal/service"
	"github.com/bookmarkhive/hivecache/internal/store"
)

var count = flag.Int("count", 50, "Number of bookmarks to create per user")

var sampleDomains = []string{
	"go.dev",
	"pkg.go.dev",
	"news.ycombinator.com",
	"lobste.rs",
	"blog.golang.org",
	"research.swtch.com",
	"dgraph.io",
	"sqlite.org",
}

var sampleTags = []string{
	"golang", "databases", "distributed-systems", "performance",
	"tooling", "reading-list", "reference", "til",
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/HiveCache/data/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	bookmarks := service.NewBookmarkService(s, nil)

	var userIDs []string
	for user, err := range s.Users.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		userIDs = append(userIDs, user.ID)
	}

	if len(userIDs) == 0 {
		log.Fatal("No users found in database. Run setup first.")
	}

	fmt.Printf("Found %d users\n", len(userIDs))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, userID := range userIDs {
		fmt.Printf("\nSeeding %d bookmarks for user %s\n", *count, userID)

		created := 0
		for i := 0; i < *count; i++ {
			domain := sampleDomains[rng.Intn(len(sampleDomains))]
			url := fmt.Sprintf("https://%s/articles/%d", domain, rng.Intn(10000))

			tags := make([]string, 0, 3)
			for _, tag := range sampleTags {
				if rng.Intn(4) == 0 {
					tags = append(tags, tag)
				}
			}

			_, err := bookmarks.Create(ctx, userID, service.CreateBookmarkRequest{
				URL:      url,
				Title:    fmt.Sprintf("Article %d from %s", i, domain),
				IsPublic: rng.Intn(2) == 0,
				Tags:     tags,
			})
			if err != nil {
				log.Printf("Failed to create bookmark: %v", err)
				continue
			}
			created++

			// Occasionally re-save a URL to build version chains.
			if rng.Intn(10) == 0 {
				_, err := bookmarks.Create(ctx, userID, service.CreateBookmarkRequest{
					URL:   url,
					Title: fmt.Sprintf("Article %d from %s (updated)", i, domain),
					Tags:  tags,
				})
				if err == nil {
					created++
				}
			}
		}

		fmt.Printf("Created %d bookmark versions\n", created)
	}

	fmt.Println("\nDone.")
}
