// Package main provides the CLI entry point for blog-mirror.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/lepinkainen/blog-mirror/internal/blog"
	"github.com/lepinkainen/blog-mirror/internal/config"
	"github.com/lepinkainen/blog-mirror/internal/server"
	"github.com/lepinkainen/blog-mirror/pkg/cache"
	httputil "github.com/lepinkainen/blog-mirror/pkg/http"
	"github.com/lepinkainen/blog-mirror/pkg/preview"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Serve struct {
		Addr string `help:"Listen address, overrides server.addr"`
	} `cmd:"serve" help:"Serve the blog feed over HTTP."`

	Fetch struct {
		Outfile string `help:"Write the response envelope to a file instead of stdout" short:"o"`
	} `cmd:"fetch" help:"Fetch the feed once and print the JSON response envelope."`

	Preview struct {
		Index int `help:"Output JSON for specific post index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Preview parsed blog posts interactively."`
}

func main() {
	// Parse CLI with Kong YAML configuration file loading
	kctx := kong.Parse(&CLI,
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.blog-mirror/config.yaml"),
	)

	if err := run(kctx.Command()); err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func run(command string) error {
	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		return err
	}

	closeLog := setupLogging(cfg, CLI.Debug, command == "serve")
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(cfg.CacheOptions())
	if err != nil {
		// The gateway treats an unavailable store as a permanent miss
		slog.Warn("Cache store unavailable, serving uncached", "backend", cfg.Cache.Backend, "error", err)
		store = cache.Disabled{}
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close cache store", "error", err)
		}
	}()

	source, gateway := newGateway(cfg, store)

	switch command {
	case "serve":
		return serve(ctx, cfg, gateway)
	case "fetch":
		return fetch(ctx, gateway, CLI.Fetch.Outfile)
	case "preview":
		return previewPosts(ctx, gateway, source.URL(), CLI.Preview.Index)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newGateway(cfg *config.Config, store cache.Store) (*blog.HTTPSource, *blog.Gateway) {
	source := blog.NewHTTPSource(cfg.Blog.FeedURL, &httputil.ClientConfig{
		Timeout:      cfg.Upstream.Timeout,
		MaxRetries:   cfg.Upstream.MaxRetries,
		RetryBackoff: cfg.Upstream.RetryBackoff,
		UserAgent:    cfg.Upstream.UserAgent,
	})
	parser := blog.NewParser(blog.NewExtractor(cfg.Blog.DefaultAuthor))

	gateway := blog.NewGateway(source, parser, store, blog.GatewayConfig{
		TTL:      cfg.Cache.TTL,
		CacheKey: cfg.Cache.Key,
		Coalesce: cfg.Cache.Coalesce,
	})
	return source, gateway
}

func serve(ctx context.Context, cfg *config.Config, gateway *blog.Gateway) error {
	addr := cfg.Server.Addr
	if CLI.Serve.Addr != "" {
		addr = CLI.Serve.Addr
	}

	handler := server.NewHandler(gateway, cfg.Blog.FallbackURL, cfg.Server.RequestTimeout)
	return server.Run(ctx, server.New(handler), addr)
}

func fetch(ctx context.Context, gateway *blog.Gateway, outfile string) error {
	result, err := gateway.Get(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(server.NewPostsResponse(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}

	if outfile == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(outfile, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outfile, err)
	}
	slog.Info("Wrote posts", "file", outfile, "count", len(result.Records))
	return nil
}

func previewPosts(ctx context.Context, gateway *blog.Gateway, feedURL string, index int) error {
	result, err := gateway.Get(ctx)
	if err != nil {
		return err
	}

	// If index is specified, output JSON directly to stdout
	if index >= 0 {
		if index >= len(result.Records) {
			return fmt.Errorf("index %d out of range, feed has %d posts", index, len(result.Records))
		}
		fmt.Println(preview.FormatJSONItem(result.Records[index]))
		return nil
	}

	return preview.Run(result, feedURL)
}
