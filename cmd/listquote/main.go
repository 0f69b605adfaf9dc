package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/catalog"
	"listquote/internal/config"
	"listquote/internal/connectors"
	"listquote/internal/docquote"
	"listquote/internal/httpserver"
	"listquote/internal/listener"
	"listquote/internal/logging"
	"listquote/internal/pipeline"
	"listquote/internal/reconcile"
	"listquote/internal/storage"
)

const defaultCartID = "default"

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	must(err)
	defer func() { _ = logger.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "catalog:sync":
		must(cfg.Require("CATALOG_API_BASE_URL", cfg.CatalogAPIBaseURL))
		svc := catalog.NewSyncService(db, catalog.NewClient(cfg, logger), logger)
		count, err := svc.Sync(ctx)
		must(err)
		fmt.Printf("catalog sync complete: %d products\n", count)
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "price list xlsx")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		count, err := catalog.NewSyncService(db, nil, logger).Import(ctx, *file)
		must(err)
		fmt.Printf("catalog import complete: %d products\n", count)
	case "quote:review":
		opts, err := parseReviewFlags(args)
		must(err)
		processor, validator, err := buildProcessor(ctx, cfg, db, opts.remote, logger)
		must(err)
		engine := reconcile.New(processor, reconcile.WithValidator(validator), reconcile.WithLogger(logger))
		must(runReview(ctx, engine, db.Cart(opts.cartID), opts, os.Stdout))
	case "quote:serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.ServerAddr, "listen address")
		_ = fs.Parse(args)
		matcher, err := pipeline.LoadMatcher(ctx, db, cfg)
		must(err)
		srv := httpserver.New(pipeline.NewLocalProcessor(matcher, logger), logger)
		must(srv.ListenAndServe(ctx, *addr))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := connectors.New(ctx, *provider, cfg)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn, logger).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (empty for all)")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		_ = fs.Parse(args)
		intake := pipeline.NewIntakeService(db, cfg, logger)
		if strings.TrimSpace(*messageID) != "" {
			if strings.TrimSpace(*provider) == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			res, err := intake.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("message id=%d status=%s lines=%d draft=%s export=%s\n", res.MessageID, res.Status, res.Lines, res.DraftID, res.ExportPath)
			return
		}
		summary, err := intake.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed=%d skipped=%d failed=%d lines=%d\n", summary.Processed, summary.Skipped, summary.Failed, summary.Lines)
	case "mail:listen":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		once := fs.Bool("once", false, "run a single cycle")
		_ = fs.Parse(args)
		svc := listener.NewService(db, cfg, logger)
		if *once {
			res, err := svc.RunOnce(ctx)
			must(err)
			fmt.Printf("cycle done provider=%s fetched=%d processed=%d skipped=%d failed=%d\n",
				res.Provider, res.Fetched, res.Intake.Processed, res.Intake.Skipped, res.Intake.Failed)
			return
		}
		must(svc.Run(ctx))
	case "drafts:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap")
		messageID := fs.String("messageId", "", "message-id")
		_ = fs.Parse(args)
		row, err := db.MustMessage(ctx, *provider, *messageID)
		must(err)
		drafts, err := db.ListDraftQuotes(ctx, row.ID)
		must(err)
		must(printDrafts(os.Stdout, row, drafts))
	case "cart:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		cartID := fs.String("cart", defaultCartID, "cart id")
		_ = fs.Parse(args)
		items, err := db.Cart(*cartID).Items(ctx)
		must(err)
		must(printCart(os.Stdout, *cartID, items))
	case "cart:clear":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		cartID := fs.String("cart", defaultCartID, "cart id")
		_ = fs.Parse(args)
		must(db.Cart(*cartID).Clear(ctx))
		fmt.Printf("cart %s cleared\n", *cartID)
	default:
		usage()
		os.Exit(1)
	}
}

// buildProcessor picks the remote service when asked or configured, the
// local pipeline otherwise. The local pipeline also reads xlsx, txt and eml.
func buildProcessor(ctx context.Context, cfg config.Config, db *storage.DB, remote bool, logger *zap.Logger) (reconcile.Processor, func(internal.Document) error, error) {
	if remote || cfg.RemoteProcessing() {
		if err := cfg.Require("DOCQUOTE_BASE_URL", cfg.DocQuoteBaseURL); err != nil {
			return nil, nil, err
		}
		return docquote.NewClient(cfg, logger), docquote.ValidateUpload, nil
	}
	matcher, err := pipeline.LoadMatcher(ctx, db, cfg)
	if err != nil {
		return nil, nil, err
	}
	if matcher.CatalogSize() == 0 {
		logger.Warn("local catalog is empty; run catalog:sync or catalog:import first")
	}
	return pipeline.NewLocalProcessor(matcher, logger), docquote.ValidateIntake, nil
}

func usage() {
	fmt.Println("usage: listquote <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:sync")
	fmt.Println("  catalog:import --file=./precios.xlsx")
	fmt.Println("  quote:review --file=./lista.pdf [--filter=all|matched|unmatched] [--toggle='term::productId']... [--export=out.xlsx] [--commit] [--cart=default] [--remote]")
	fmt.Println("  quote:serve [--addr=:8080]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen [--once]")
	fmt.Println("  drafts:show --provider=gmail|imap --messageId=...")
	fmt.Println("  cart:show [--cart=default]")
	fmt.Println("  cart:clear [--cart=default]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
