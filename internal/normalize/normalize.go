// Package normalize converts raw provider submissions into canonical
// SubmissionRecords. Extraction is lossy by contract: a missing field is an
// empty field, never an error, so one malformed submission cannot stall the
// stream.
package normalize

import (
	"regexp"
	"strings"

	"pulse/ingest/internal/model"
)

var (
	// Old-Reddit boilerplate injected into media post bodies.
	boilerplateRe = regexp.MustCompile(`(?i)This post contains content not supported on old Reddit\.[^\n]*`)

	// [label](url) -> label, for http(s) and site-relative links.
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\((?:https?://|/)[^)]+\)`)

	bareURLRe    = regexp.MustCompile(`https?://\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanMarkdown strips boilerplate, rewrites markdown links to their label
// text, removes bare URLs and collapses runs of whitespace.
func CleanMarkdown(text string) string {
	if text == "" {
		return ""
	}
	text = boilerplateRe.ReplaceAllString(text, "")
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = bareURLRe.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Submission is the provider-shaped input to normalization. Optional fields
// that the provider omitted arrive as zero values.
type Submission struct {
	ID             string
	Title          string
	SelfText       string
	IsSelf         bool
	CreatedUTC     float64 // seconds since epoch, fractional
	Subreddit      string
	CrosspostTitle string // first crosspost parent's title, if any
}

// Record builds the canonical SubmissionRecord for a provider submission.
// Non-self posts contribute no body text; their selftext is usually media
// boilerplate. Empty text after cleaning is a valid record, not an error.
func Record(s Submission) model.SubmissionRecord {
	title := strings.TrimSpace(s.Title)

	body := ""
	if s.IsSelf {
		body = CleanMarkdown(s.SelfText)
	}

	// Enrich crossposts with the original title when it adds signal.
	if orig := strings.TrimSpace(s.CrosspostTitle); orig != "" {
		if !strings.Contains(strings.ToLower(title), strings.ToLower(orig)) {
			title = strings.TrimSpace(title + " " + orig)
		}
	}

	text := strings.TrimSpace(title + " " + body)

	return model.SubmissionRecord{
		ID:        s.ID,
		Text:      model.Truncate(text),
		Timestamp: int64(s.CreatedUTC * 1000),
		Source:    "reddit",
		Lang:      "en",
	}
}
