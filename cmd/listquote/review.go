package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"listquote/internal"
	"listquote/internal/pipeline"
	"listquote/internal/reconcile"
)

type toggleList []string

func (t *toggleList) String() string { return strings.Join(*t, ",") }

func (t *toggleList) Set(v string) error {
	*t = append(*t, v)
	return nil
}

type reviewOptions struct {
	file    string
	filter  reconcile.Filter
	toggles []toggle
	export  string
	commit  bool
	cartID  string
	remote  bool
}

type toggle struct {
	searchTerm  string
	candidateID string
}

func parseReviewFlags(args []string) (reviewOptions, error) {
	fs := flag.NewFlagSet("quote:review", flag.ContinueOnError)
	file := fs.String("file", "", "document to process (pdf, jpg, png, webp, xlsx, txt, eml)")
	filter := fs.String("filter", "all", "all|matched|unmatched")
	export := fs.String("export", "", "write the review to this xlsx path")
	commit := fs.Bool("commit", false, "add the selection to the cart")
	cartID := fs.String("cart", defaultCartID, "cart id")
	remote := fs.Bool("remote", false, "use the remote processing service")
	var toggles toggleList
	fs.Var(&toggles, "toggle", "flip a candidate, as 'search term::productId' (repeatable)")
	if err := fs.Parse(args); err != nil {
		return reviewOptions{}, err
	}

	opts := reviewOptions{
		file:   strings.TrimSpace(*file),
		export: strings.TrimSpace(*export),
		commit: *commit,
		cartID: *cartID,
		remote: *remote,
	}
	if opts.file == "" {
		return reviewOptions{}, errors.New("--file is required")
	}
	f, err := reconcile.ParseFilter(*filter)
	if err != nil {
		return reviewOptions{}, err
	}
	opts.filter = f
	for _, raw := range toggles {
		t, err := parseToggle(raw)
		if err != nil {
			return reviewOptions{}, err
		}
		opts.toggles = append(opts.toggles, t)
	}
	return opts, nil
}

// parseToggle splits "search term::productId" at the last separator so
// search terms may contain "::".
func parseToggle(raw string) (toggle, error) {
	idx := strings.LastIndex(raw, "::")
	if idx <= 0 || idx+2 >= len(raw) {
		return toggle{}, fmt.Errorf("invalid --toggle %q, want 'search term::productId'", raw)
	}
	return toggle{searchTerm: raw[:idx], candidateID: strings.TrimSpace(raw[idx+2:])}, nil
}

// runReview drives one review session: process, apply toggles, show, and
// optionally export and commit. Without --commit the session is cancelled.
func runReview(ctx context.Context, engine *reconcile.Engine, cart reconcile.CartInserter, opts reviewOptions, out io.Writer) error {
	doc, err := pipeline.DocumentFromPath(opts.file)
	if err != nil {
		return err
	}
	if err := engine.ProcessDocument(ctx, doc); err != nil {
		return err
	}
	defer engine.Cancel()

	for _, t := range opts.toggles {
		selected, err := engine.Toggle(t.searchTerm, t.candidateID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "toggle %q %s -> selected=%t\n", t.searchTerm, t.candidateID, selected)
	}

	preview, err := engine.Preview()
	if err != nil {
		return err
	}
	if opts.export != "" {
		if err := pipeline.ExportReviewXLSX(engine.Review(), preview, opts.export); err != nil {
			return err
		}
		fmt.Fprintf(out, "review exported to %s\n", opts.export)
	}

	if err := engine.SetFilter(opts.filter); err != nil {
		return err
	}
	if err := printView(out, engine.Review()); err != nil {
		return err
	}
	if err := printPreview(out, preview); err != nil {
		return err
	}

	if !opts.commit {
		return nil
	}
	additions, err := engine.CommitTo(ctx, cart)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %d products to cart\n", len(additions))
	return nil
}

func printView(out io.Writer, view reconcile.View) error {
	s := view.Stats
	fmt.Fprintf(out, "session %s filter=%s lines=%d found=%d notFound=%d high=%d medium=%d successRate=%.1f%% selected=%d\n",
		view.SessionID, view.Filter, s.Total, s.Found, s.NotFound, s.HighConfidence, s.MediumConfidence, s.SuccessRate, view.SelectedCount)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEL\tTERM\tQTY\tCONF\tPRODUCT\tNAME\tPRICE\tSTOCK\tSIM")
	for _, line := range view.Lines {
		if len(line.Candidates) == 0 {
			fmt.Fprintf(tw, " \t%s\t%d\t%s\t-\t(sin coincidencias)\t\t\t\n", line.SearchTerm, line.RequestedQuantity, line.Confidence)
			continue
		}
		for i, c := range line.Candidates {
			term, qty, conf := "", "", ""
			if i == 0 {
				term, qty, conf = line.SearchTerm, fmt.Sprint(line.RequestedQuantity), string(line.Confidence)
			}
			mark := " "
			if c.Selected {
				mark = "x"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%d\t%.1f\n", mark, term, qty, conf, c.ID, c.Name, c.Price, c.Stock, c.Similarity)
		}
	}
	return tw.Flush()
}

func printPreview(out io.Writer, preview reconcile.Preview) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tUNIT\tSUBTOTAL\tSTOCK")
	for _, item := range preview.Items {
		stock := fmt.Sprint(item.Stock)
		if item.Backorder {
			stock += " (sin stock suficiente)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", item.ProductID, item.Name, item.Quantity, item.UnitPrice.StringFixed(2), item.Subtotal.StringFixed(2), stock)
	}
	fmt.Fprintf(tw, "\t\t\t\tTOTAL %s\t\n", preview.Total.StringFixed(2))
	return tw.Flush()
}

func printCart(out io.Writer, cartID string, items []internal.CartAddition) error {
	fmt.Fprintf(out, "cart %s: %d products\n", cartID, len(items))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%d\n", item.ProductID, item.Quantity)
	}
	return tw.Flush()
}

func printDrafts(out io.Writer, row internal.MessageRow, drafts []internal.DraftQuote) error {
	fmt.Fprintf(out, "message %d %q status=%s drafts=%d\n", row.ID, row.Subject, row.Status, len(drafts))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range drafts {
		fmt.Fprintf(tw, "draft %s\tsession %s\ttotal %s\t%s\n", d.ID, d.SessionID, d.Total, d.CreatedAt)
		for _, item := range d.Items {
			fmt.Fprintf(tw, "  %s\t%d\t\t\n", item.ProductID, item.Quantity)
		}
	}
	return tw.Flush()
}
