package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"listquote/internal"
	"listquote/internal/docquote"
	"listquote/internal/reconcile"
)

type memoryCart struct {
	added []internal.CartAddition
}

func (c *memoryCart) Add(_ context.Context, items []internal.CartAddition) error {
	c.added = append(c.added, items...)
	return nil
}

func TestParseToggle(t *testing.T) {
	got, err := parseToggle("cuaderno 100 hojas::p1")
	require.NoError(t, err)
	require.Equal(t, toggle{searchTerm: "cuaderno 100 hojas", candidateID: "p1"}, got)

	got, err = parseToggle("a::b::p2")
	require.NoError(t, err)
	require.Equal(t, "a::b", got.searchTerm)

	for _, bad := range []string{"p1", "::p1", "term::"} {
		_, err := parseToggle(bad)
		require.Error(t, err, bad)
	}
}

func TestParseReviewFlags(t *testing.T) {
	opts, err := parseReviewFlags([]string{"--file", "lista.pdf", "--filter", "Unmatched", "--toggle", "lapiz::p3", "--toggle", "goma::p4", "--commit"})
	require.NoError(t, err)
	require.Equal(t, reconcile.FilterUnmatched, opts.filter)
	require.Len(t, opts.toggles, 2)
	require.True(t, opts.commit)
	require.Equal(t, defaultCartID, opts.cartID)

	_, err = parseReviewFlags([]string{"--filter", "all"})
	require.ErrorContains(t, err, "--file")

	_, err = parseReviewFlags([]string{"--file", "x.pdf", "--filter", "some"})
	require.ErrorIs(t, err, reconcile.ErrInvalidFilter)
}

func TestRunReviewTogglesAndCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lista.txt")
	require.NoError(t, os.WriteFile(path, []byte("cuaderno 2\nlapiz 3\n"), 0o644))

	proc := reconcile.ProcessorFunc(func(context.Context, internal.Document) (internal.ProcessResponse, error) {
		results := []internal.LineItem{
			{SearchTerm: "cuaderno", RequestedQuantity: 2, Matched: true, Confidence: internal.ConfidenceHigh,
				Candidates: []internal.Candidate{{ID: "p1", Name: "Cuaderno", Price: 1.5, Stock: 10, Similarity: 95}}},
			{SearchTerm: "lapiz", RequestedQuantity: 3, Matched: true, Confidence: internal.ConfidenceLow,
				Candidates: []internal.Candidate{{ID: "p3", Name: "Lápiz HB", Price: 0.5, Stock: 1, Similarity: 52}}},
		}
		return internal.ProcessResponse{Results: results, Stats: docquote.ComputeStats(results)}, nil
	})
	engine := reconcile.New(proc, reconcile.WithValidator(docquote.ValidateIntake))
	cart := &memoryCart{}
	out := &bytes.Buffer{}
	export := filepath.Join(t.TempDir(), "review.xlsx")

	err := runReview(context.Background(), engine, cart, reviewOptions{
		file:    path,
		filter:  reconcile.FilterAll,
		toggles: []toggle{{searchTerm: "lapiz", candidateID: "p3"}},
		export:  export,
		commit:  true,
	}, out)
	require.NoError(t, err)
	require.Equal(t, []internal.CartAddition{{ProductID: "p1", Quantity: 2}, {ProductID: "p3", Quantity: 3}}, cart.added)
	require.Equal(t, reconcile.StateIdle, engine.State())
	require.FileExists(t, export)
	require.Contains(t, out.String(), "TOTAL 4.50")
	require.Contains(t, out.String(), "sin stock suficiente")
	require.Contains(t, out.String(), "added 2 products to cart")
}

func TestRunReviewWithoutCommitLeavesCartAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lista.txt")
	require.NoError(t, os.WriteFile(path, []byte("cuaderno 2\n"), 0o644))

	proc := reconcile.ProcessorFunc(func(context.Context, internal.Document) (internal.ProcessResponse, error) {
		return internal.ProcessResponse{Results: []internal.LineItem{{SearchTerm: "cuaderno", RequestedQuantity: 2}}}, nil
	})
	engine := reconcile.New(proc, reconcile.WithValidator(docquote.ValidateIntake))
	cart := &memoryCart{}
	out := &bytes.Buffer{}

	require.NoError(t, runReview(context.Background(), engine, cart, reviewOptions{file: path, filter: reconcile.FilterUnmatched}, out))
	require.Empty(t, cart.added)
	require.Equal(t, reconcile.StateIdle, engine.State())
	require.Contains(t, out.String(), "sin coincidencias")

	err := runReview(context.Background(), engine, cart, reviewOptions{
		file:    path,
		filter:  reconcile.FilterAll,
		toggles: []toggle{{searchTerm: "cuaderno", candidateID: "p9"}},
	}, out)
	require.ErrorIs(t, err, reconcile.ErrUnknownCandidate)
	require.Equal(t, reconcile.StateIdle, engine.State())
}
