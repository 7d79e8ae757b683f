// Command docwatch uploads a contract (or picks up an existing document) and
// prints its summary, risks and clauses as the background pipeline fills them in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"legaldoc-backend/internal/client"
	"legaldoc-backend/internal/markup"
	"legaldoc-backend/internal/poller"
)

type options struct {
	baseURL, email, password, token string
	file, docID                     string
	interval, timeout               time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "api", "http://localhost:8080/api", "API base URL")
	flag.StringVar(&opts.email, "email", os.Getenv("DOCWATCH_EMAIL"), "account email")
	flag.StringVar(&opts.password, "password", os.Getenv("DOCWATCH_PASSWORD"), "account password")
	flag.StringVar(&opts.token, "token", os.Getenv("DOCWATCH_TOKEN"), "bearer token; skips login")
	flag.StringVar(&opts.file, "file", "", "PDF to upload")
	flag.StringVar(&opts.docID, "id", "", "existing document id to watch")
	flag.DurationVar(&opts.interval, "interval", poller.DefaultInterval, "poll interval")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if (opts.file == "") == (opts.docID == "") {
		return errors.New("exactly one of --file or --id is required")
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	api := client.New(opts.baseURL, opts.token)
	if opts.token == "" {
		if opts.email == "" || opts.password == "" {
			return errors.New("--email and --password are required without --token")
		}
		if err := api.Login(ctx, opts.email, opts.password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	doc, err := load(ctx, api, opts.file, opts.docID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Document %s (%s)\n", doc.ID, doc.OriginalFileName)

	printed := map[string]bool{}
	show := func(ai client.AI) {
		printResolved(out, ai, printed)
	}
	show(doc.AI)

	p := &poller.Poller{Fetcher: api, Interval: opts.interval, OnUpdate: show}
	if _, err := p.Watch(ctx, doc.ID, doc.AI); err != nil {
		return fmt.Errorf("watch stopped before all fields were ready: %w", err)
	}
	return nil
}

func load(ctx context.Context, api *client.Client, file, docID string) (client.Document, error) {
	if docID != "" {
		doc, err := api.GetDocument(ctx, docID)
		if err != nil {
			return client.Document{}, fmt.Errorf("get document: %w", err)
		}
		return doc, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return client.Document{}, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	doc, err := api.Upload(ctx, filepath.Base(file), f)
	if err != nil {
		return client.Document{}, fmt.Errorf("upload: %w", err)
	}
	return doc, nil
}

// printResolved writes each field once, the first time it is non-nil.
func printResolved(w io.Writer, ai client.AI, printed map[string]bool) {
	sections := []struct {
		kind, title string
		value       *string
	}{
		{"summary", "Summary", ai.Summary},
		{"risks", "Risks", ai.Risks},
		{"clauses", "Key clauses", ai.Clauses},
	}
	for _, s := range sections {
		if s.value == nil || printed[s.kind] {
			continue
		}
		printed[s.kind] = true
		fmt.Fprintf(w, "\n== %s ==\n", s.title)
		if err := markup.Render(w, markup.Parse(*s.value)); err != nil {
			fmt.Fprintf(os.Stderr, "render %s: %v\n", s.kind, err)
		}
	}
}
