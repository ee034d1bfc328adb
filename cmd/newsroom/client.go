package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alphabot-ai/newsroom/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	username  string
	email     string
	password  string
)

func passwordFlag() (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv("NEWSROOM_PASSWORD"); env != "" {
		return env, nil
	}
	return "", errors.New("--password (or NEWSROOM_PASSWORD) is required")
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an author, log in and attach a signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return errors.New("--username is required")
		}
		pw, err := passwordFlag()
		if err != nil {
			return err
		}
		cfg := CLIConfig{BaseURL: strings.TrimSuffix(serverURL, "/"), Username: username}
		c := client.New(cfg.BaseURL)

		author, err := c.Register(username, email, pw)
		switch {
		case errors.Is(err, client.ErrAlreadyRegistered):
			fmt.Printf("✓ Already registered as '%s'\n", username)
		case err != nil:
			return err
		default:
			fmt.Printf("✓ Registered '%s' (author %d)\n", author.Username, author.ID)
		}

		if err := c.Login(username, pw); err != nil {
			return err
		}
		cfg.Token = c.Token
		cfg.TokenExp = c.TokenExp

		creds, err := client.GenerateCredentials(username)
		if err != nil {
			return fmt.Errorf("generate keypair: %w", err)
		}
		if _, err := c.AddKey(creds); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not attach key: %v\n", err)
		} else {
			cfg.PublicKey = creds.PublicKey
			cfg.PrivateKey = creds.PrivateKeyBase64()
		}

		if err := saveCLIConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("✓ Authenticated (expires %s)\n", cfg.TokenExp.Format("2006-01-02 15:04"))
		fmt.Printf("  Config: %s\n", cliConfigPath())
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Refresh the stored token, with the stored key or a password",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCLIConfig()
		if err != nil {
			return err
		}
		c := client.New(cfg.BaseURL)
		if password != "" || os.Getenv("NEWSROOM_PASSWORD") != "" {
			pw, _ := passwordFlag()
			err = c.Login(cfg.Username, pw)
		} else {
			var creds *client.Credentials
			creds, err = cfg.credentials()
			if err == nil {
				err = c.Authenticate(creds)
			}
		}
		if err != nil {
			return err
		}
		cfg.Token = c.Token
		cfg.TokenExp = c.TokenExp
		if err := saveCLIConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("✓ Authenticated as '%s'\n", cfg.Username)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in author",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadAuthenticatedClient()
		if err != nil {
			return err
		}
		me, err := c.Me()
		if err != nil {
			return err
		}
		role := "author"
		if me.IsAdmin {
			role = "admin"
		}
		fmt.Printf("%s (id %d, %s) on %s\n", me.Username, me.ID, role, c.BaseURL)
		return nil
	},
}

var (
	postTitle   string
	postContent string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Publish an article",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if postTitle == "" {
			return errors.New("--title is required")
		}
		c, err := loadAuthenticatedClient()
		if err != nil {
			return err
		}
		article, err := c.PostArticle(postTitle, postContent)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Posted: %s\n", article.Title)
		fmt.Printf("  ID: %d\n", article.ID)
		return nil
	},
}

var (
	articleID   int64
	commentID   int64
	commentText string
	statusSlug  string
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment on an article",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if articleID == 0 || commentText == "" {
			return errors.New("--article and --text are required")
		}
		c, err := loadAuthenticatedClient()
		if err != nil {
			return err
		}
		comment, err := c.PostComment(articleID, commentText)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Commented on article %d\n", articleID)
		fmt.Printf("  ID: %d\n", comment.ID)
		return nil
	},
}

var reactCmd = &cobra.Command{
	Use:   "react",
	Short: "Toggle a status on an article or one of its comments",
	Long: `Toggle a status. The first call sets it, the same status again clears it
and a different status replaces it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if articleID == 0 || statusSlug == "" {
			return errors.New("--article and --status are required")
		}
		c, err := loadAuthenticatedClient()
		if err != nil {
			return err
		}
		var res *client.Reaction
		if commentID != 0 {
			res, err = c.ReactComment(articleID, commentID, statusSlug)
		} else {
			res, err = c.React(articleID, statusSlug)
		}
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s (%s)\n", res.Message, res.Outcome)
		return nil
	},
}

var (
	readAuthor string
	readSearch string
	readLimit  int
)

var readCmd = &cobra.Command{
	Use:     "read",
	Aliases: []string{"list"},
	Short:   "List articles, or show one article with its comments",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadClient()
		if err != nil {
			return err
		}
		if articleID != 0 {
			return showArticle(c, articleID)
		}
		articles, err := c.GetArticles(client.ArticleQuery{Author: readAuthor, Search: readSearch, Limit: readLimit})
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No articles.")
			return nil
		}
		for _, a := range articles {
			fmt.Printf("[%d] %s\n", a.ID, a.Title)
			fmt.Printf("     by %s  %s\n", a.AuthorName, formatCounts(a.Statuses))
		}
		return nil
	},
}

func showArticle(c *client.Client, id int64) error {
	article, err := c.GetArticle(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", article.Title)
	fmt.Printf("by %s  %s\n\n", article.AuthorName, formatCounts(article.Statuses))
	if article.Content != "" {
		fmt.Printf("%s\n\n", article.Content)
	}
	comments, err := c.GetComments(id)
	if err != nil {
		return err
	}
	fmt.Printf("%d comments\n", len(comments))
	for _, cm := range comments {
		fmt.Printf("  [%d] %s: %s  %s\n", cm.ID, cm.AuthorName, cm.Text, formatCounts(cm.Statuses))
	}
	return nil
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, counts[name]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func init() {
	registerCmd.Flags().StringVar(&serverURL, "url", "http://localhost:8080", "Newsroom server URL")
	registerCmd.Flags().StringVar(&username, "username", "", "Username (required)")
	registerCmd.Flags().StringVar(&email, "email", "", "Optional email")
	registerCmd.Flags().StringVar(&password, "password", "", "Password (or NEWSROOM_PASSWORD)")

	loginCmd.Flags().StringVar(&password, "password", "", "Log in with a password instead of the stored key")

	postCmd.Flags().StringVar(&postTitle, "title", "", "Article title (required, up to 100 chars)")
	postCmd.Flags().StringVar(&postContent, "content", "", "Article body")

	commentCmd.Flags().Int64Var(&articleID, "article", 0, "Article ID (required)")
	commentCmd.Flags().StringVar(&commentText, "text", "", "Comment text (required, up to 255 chars)")

	reactCmd.Flags().Int64Var(&articleID, "article", 0, "Article ID (required)")
	reactCmd.Flags().Int64Var(&commentID, "comment", 0, "Comment ID on that article")
	reactCmd.Flags().StringVar(&statusSlug, "status", "like", "Status slug")

	readCmd.Flags().Int64Var(&articleID, "article", 0, "Show one article with its comments")
	readCmd.Flags().StringVar(&readAuthor, "author", "", "Only articles by this username")
	readCmd.Flags().StringVar(&readSearch, "search", "", "Only articles containing this text")
	readCmd.Flags().IntVar(&readLimit, "limit", 20, "Number of articles")

	rootCmd.AddCommand(registerCmd, loginCmd, whoamiCmd, postCmd, commentCmd, reactCmd, readCmd)
}
