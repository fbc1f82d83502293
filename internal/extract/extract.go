// Package extract reduces fetched HTML to the signal compared across runs.
//
// Two strategies exist. The selector strategy fingerprints the visible text of
// the first element matching a CSS selector. The keyword strategy fingerprints
// the visible text of the whole document (or, in keywords signal mode, only the
// list of matched keywords) and records which keywords appear on the page.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// summaryPreviewRunes caps how much of the matched text is quoted in summaries.
const summaryPreviewRunes = 150

// Config selects the extraction strategy.
type Config struct {
	// Selector enables the selector strategy when non-empty.
	Selector string
	// Keywords are matched case-insensitively by the keyword strategy.
	Keywords []string
	// KeywordSignal makes the keyword strategy fingerprint only the matched
	// keywords instead of the full page text.
	KeywordSignal bool
}

// Extractor implements watch.Extractor.
type Extractor struct {
	selector    string
	matcher     cascadia.Selector
	keywords    []string
	keywordOnly bool
}

// New builds an Extractor. The selector is compiled up front so a bad selector
// is reported once instead of silently matching nothing on every run.
func New(cfg Config) (*Extractor, error) {
	e := &Extractor{
		selector:    strings.TrimSpace(cfg.Selector),
		keywordOnly: cfg.KeywordSignal,
	}
	for _, kw := range cfg.Keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			e.keywords = append(e.keywords, kw)
		}
	}
	if e.selector != "" {
		sel, err := cascadia.Compile(e.selector)
		if err != nil {
			return nil, fmt.Errorf("compile selector %q: %w", e.selector, err)
		}
		e.matcher = sel
		return e, nil
	}
	if len(e.keywords) == 0 {
		return nil, fmt.Errorf("either a selector or at least one keyword is required")
	}
	return e, nil
}

// Extract parses html and applies the configured strategy.
func (e *Extractor) Extract(html []byte) (watch.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return watch.ExtractionResult{}, fmt.Errorf("parse html: %w", err)
	}
	if e.matcher != nil {
		return e.extractSelector(doc), nil
	}
	return e.extractKeywords(doc), nil
}

func (e *Extractor) extractSelector(doc *goquery.Document) watch.ExtractionResult {
	match := doc.FindMatcher(e.matcher).First()
	text := ""
	if match.Length() > 0 {
		text = VisibleText(match.Nodes[0])
	}
	// An element without visible text counts as not found.
	found := text != ""

	summary := fmt.Sprintf("Selector '%s' not found", e.selector)
	if text != "" {
		summary = fmt.Sprintf("Selector '%s' matched: '%s...'", e.selector, preview(text, summaryPreviewRunes))
	}

	return watch.ExtractionResult{
		Signal:  text,
		Summary: summary,
		Metadata: watch.Metadata{
			Method:   watch.MethodSelector,
			Selector: e.selector,
			Found:    found,
			Length:   utf8.RuneCountInString(text),
		},
	}
}

func (e *Extractor) extractKeywords(doc *goquery.Document) watch.ExtractionResult {
	var pageText string
	if len(doc.Nodes) > 0 {
		pageText = VisibleText(doc.Nodes[0])
	}
	matches := MatchKeywords(pageText, e.keywords)
	pageLength := utf8.RuneCountInString(pageText)

	signal := pageText
	if e.keywordOnly {
		signal = strings.Join(matches, "\n")
	}

	matchedLabel := "none"
	if len(matches) > 0 {
		matchedLabel = strings.Join(matches, ", ")
	}
	summary := fmt.Sprintf("Keywords matched: %s | Page length: %d chars | Keywords monitored: %d",
		matchedLabel, pageLength, len(e.keywords))

	return watch.ExtractionResult{
		Signal:  signal,
		Summary: summary,
		Metadata: watch.Metadata{
			Method:          watch.MethodKeywords,
			Found:           len(matches) > 0,
			TotalKeywords:   len(e.keywords),
			MatchedKeywords: matches,
			PageLength:      pageLength,
		},
	}
}

// MatchKeywords returns the keywords found in text, case-insensitively, in the
// order they were configured.
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	matches := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches = append(matches, kw)
		}
	}
	return matches
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
