package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/alphabot-ai/newsroom/internal/client"
)

var authors = []string{"ada", "grace", "linus", "barbara", "ken"}

var articles = []struct {
	title   string
	content string
}{
	{"City council approves new bike lanes", "The vote passed seven to two after a long public hearing."},
	{"Local bakery wins national award", "Their sourdough beat over three hundred entries."},
	{"Rain expected all weekend", "Forecasters advise bringing an umbrella to the market."},
	{"School robotics team heads to finals", "The team built their robot from recycled parts."},
	{"Library extends opening hours", "Branches will stay open until nine on weekdays."},
	{"Opinion: we need more public benches", "Walking the city should not be a test of endurance."},
	{"Harbor cleanup collects two tons of waste", "Volunteers came from every district."},
	{"New exhibit opens at the history museum", "It covers two centuries of the port's trade."},
}

var comments = []string{
	"Great reporting, thanks for covering this.",
	"I disagree with the framing here.",
	"Does anyone know when this takes effect?",
	"Finally!",
	"This affects my neighborhood directly.",
	"Would love a follow-up on this.",
	"Sources?",
	"Nice to read some good news for a change.",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Newsroom server URL")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info("seeding", "url", *baseURL)

	helper := client.NewTestHelper(*baseURL)
	var clients []*client.Client
	for _, name := range authors {
		c, err := helper.CreateAuthenticatedClient(name)
		if err != nil {
			logger.Error("register author", "author", name, "err", err)
			os.Exit(1)
		}
		logger.Info("registered author", "author", name)
		clients = append(clients, c)
	}

	statuses, err := clients[0].Statuses()
	if err != nil || len(statuses) == 0 {
		logger.Error("status catalog is empty or unreachable", "err", err)
		os.Exit(1)
	}

	var articleIDs []int64
	for _, a := range articles {
		idx := rand.Intn(len(clients))
		article, err := clients[idx].PostArticle(a.title, a.content)
		if err != nil {
			logger.Warn("post article", "title", a.title, "err", err)
			continue
		}
		articleIDs = append(articleIDs, article.ID)
		logger.Info("posted article", "id", article.ID, "author", authors[idx])

		// Small delay to spread out created_at times
		time.Sleep(50 * time.Millisecond)
	}

	commentCount := 0
	reactionCount := 0
	for _, articleID := range articleIDs {
		numComments := rand.Intn(4) + 1
		for i := 0; i < numComments; i++ {
			c := clients[rand.Intn(len(clients))]
			comment, err := c.PostComment(articleID, comments[rand.Intn(len(comments))])
			if err != nil {
				logger.Warn("post comment", "article", articleID, "err", err)
				continue
			}
			commentCount++

			if rand.Float32() < 0.5 {
				reactor := clients[rand.Intn(len(clients))]
				if _, err := reactor.ReactComment(articleID, comment.ID, statuses[0].Slug); err == nil {
					reactionCount++
				}
			}
		}

		// Each author reacts at most once per article here, so every call creates.
		for _, c := range clients {
			if rand.Float32() < 0.4 {
				continue
			}
			slug := statuses[0].Slug
			if len(statuses) > 1 && rand.Float32() < 0.25 {
				slug = statuses[1+rand.Intn(len(statuses)-1)].Slug
			}
			if _, err := c.React(articleID, slug); err != nil {
				logger.Warn("react", "article", articleID, "status", slug, "err", err)
				continue
			}
			reactionCount++
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Authors:   %d\n", len(authors))
	fmt.Printf("Articles:  %d\n", len(articleIDs))
	fmt.Printf("Comments:  %d\n", commentCount)
	fmt.Printf("Reactions: %d\n", reactionCount)
	fmt.Println("\nAPI docs at:", *baseURL+"/swagger/index.html")
}
