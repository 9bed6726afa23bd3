package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fuse-framework/fuserecord/internal/config"
	"github.com/fuse-framework/fuserecord/internal/logging"
	"github.com/fuse-framework/fuserecord/internal/model"
	"github.com/fuse-framework/fuserecord/internal/record"
	"github.com/fuse-framework/fuserecord/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config; fall back to an in-memory sqlite setup so the demo
	// runs without an app.yaml.
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{
			Development: true,
			Logging:     config.LoggingConfig{Level: "DEBUG", Format: "text"},
			Database:    config.DatasourceConfig{Driver: "sqlite", Name: "demo"},
		}
	}
	logger := logging.New(cfg.Logging)

	// 2. Connect
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := createSchema(ctx, db); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	// 3. Register classes
	reg := model.NewRegistry()
	if err := registerClasses(reg); err != nil {
		log.Fatalf("Failed to register classes: %v", err)
	}

	engine := record.NewEngine(db, reg,
		record.WithLogger(logger),
		record.WithDevelopmentMode(cfg.Development),
	)

	if err := run(ctx, engine); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func registerClasses(reg *model.Registry) error {
	_, err := reg.Register(model.Definition{
		Name: "User",
		Columns: []model.Column{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "string"},
			{Name: "email", Type: "string"},
			{Name: "active", Type: "boolean"},
			{Name: "created_at", Type: "timestamp"},
			{Name: "updated_at", Type: "timestamp"},
		},
		Relationships: []model.Relationship{
			{Name: "posts", Kind: model.HasMany, Target: "Post"},
		},
		Rules: []model.Rule{
			{Type: model.RuleField, Field: "name", Operator: "required", Message: "Name is required"},
			{Type: model.RuleField, Field: "email", Operator: "pattern", Value: `^[^@]+@[^@]+$`, Message: "Email looks wrong"},
		},
	})
	if err != nil {
		return err
	}

	_, err = reg.Register(model.Definition{
		Name: "Post",
		Columns: []model.Column{
			{Name: "id", Type: "int"},
			{Name: "user_id", Type: "int"},
			{Name: "title", Type: "string"},
			{Name: "created_at", Type: "timestamp"},
			{Name: "updated_at", Type: "timestamp"},
		},
		Relationships: []model.Relationship{
			{Name: "author", Kind: model.BelongsTo, ForeignKey: "user_id", Target: "User"},
			{Name: "comments", Kind: model.HasMany, Target: "Comment"},
		},
		Rules: []model.Rule{
			{Type: model.RuleField, Field: "title", Operator: "min_length", Value: 3, Message: "Title too short"},
		},
	})
	if err != nil {
		return err
	}

	_, err = reg.Register(model.Definition{
		Name: "Comment",
		Columns: []model.Column{
			{Name: "id", Type: "int"},
			{Name: "post_id", Type: "int"},
			{Name: "body", Type: "string"},
		},
		Relationships: []model.Relationship{
			{Name: "post", Kind: model.BelongsTo, Target: "Post"},
		},
	})
	return err
}

func run(ctx context.Context, engine *record.Engine) error {
	users, err := engine.Model("User")
	if err != nil {
		return err
	}
	posts, err := engine.Model("Post")
	if err != nil {
		return err
	}
	comments, err := engine.Model("Comment")
	if err != nil {
		return err
	}

	alice := users.New(map[string]any{"name": "Alice", "email": "alice@example.com", "active": true})
	if ok, err := alice.Save(ctx); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("alice failed validation: %v", alice.Errors())
	}

	post := posts.New(map[string]any{"user_id": alice.Get("id"), "title": "Hello fuserecord"})
	if _, err := post.Save(ctx); err != nil {
		return err
	}
	comment := comments.New(map[string]any{"post_id": post.Get("id"), "body": "First!"})
	if _, err := comment.Save(ctx); err != nil {
		return err
	}

	// Eager: two queries regardless of user count, plus one per nested level.
	loaded, err := users.Where(map[string]any{"active": true}).
		OrderBy("name").
		Includes("posts.comments").
		Get(ctx)
	if err != nil {
		return err
	}
	for _, u := range loaded {
		userPosts, err := u.RelatedMany(ctx, "posts")
		if err != nil {
			return err
		}
		fmt.Printf("%s has %d post(s)\n", u.Get("name"), len(userPosts))
		for _, p := range userPosts {
			postComments, err := p.RelatedMany(ctx, "comments")
			if err != nil {
				return err
			}
			fmt.Printf("  %q with %d comment(s)\n", p.Get("title"), len(postComments))
		}
	}

	// Lazy: this one warns in development mode.
	first, err := posts.Query().First(ctx)
	if err != nil {
		return err
	}
	if first != nil {
		author, err := first.RelatedOne(ctx, "author")
		if err != nil {
			return err
		}
		if author != nil {
			fmt.Printf("first post by %s\n", author.Get("name"))
		}
	}
	return nil
}

func createSchema(ctx context.Context, db *store.Store) error {
	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			active BOOLEAN DEFAULT 1,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER REFERENCES users(id),
			title TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id INTEGER REFERENCES posts(id),
			body TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}
