package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/dshills/productrank-mcp/internal/searcher"
)

var (
	rankColor   = color.New(color.FgCyan, color.Bold)
	nameColor   = color.New(color.Bold)
	scoreColor  = color.New(color.FgGreen)
	dimColor    = color.New(color.Faint)
	warnColor   = color.New(color.FgYellow)
	successMark = color.New(color.FgGreen).Sprint("✓")
)

// printResults writes a human readable ranking
func printResults(w io.Writer, query string, resp *searcher.Response) {
	fmt.Fprintf(w, "Query: %s\n", query)
	if len(resp.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(resp.Categories, ", "))
	}
	if resp.Degraded {
		warnColor.Fprintf(w, "! vector source unavailable (%s), ranked on lexical scores only\n", resp.DegradedReason)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintln(w)
	for _, r := range resp.Results {
		rankColor.Fprintf(w, "%2d. ", r.Rank)
		nameColor.Fprintf(w, "%s", r.Name)
		dimColor.Fprintf(w, "  [%s]", r.RecordID)
		if r.Category != "" {
			dimColor.Fprintf(w, " %s", r.Category)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    score ")
		scoreColor.Fprintf(w, "%.4f", r.Score)
		fmt.Fprintf(w, "  lexical %.3f  vector %.3f  weight %.1f  (%s)\n",
			r.Breakdown.LexicalNorm, r.Breakdown.VectorNorm, r.Breakdown.CategoryWeight, r.ChunkType)
		if snippet := firstLine(r.Text, 80); snippet != "" {
			dimColor.Fprintf(w, "    %s\n", snippet)
		}
	}
	dimColor.Fprintf(w, "\n%d results in %s (query %s)\n", len(resp.Results), resp.Duration, resp.QueryID)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// firstLine returns the first non-empty line of s cut to limit runes
func firstLine(s string, limit int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > limit {
			runes := []rune(line)
			return string(runes[:limit]) + "…"
		}
		return line
	}
	return ""
}
