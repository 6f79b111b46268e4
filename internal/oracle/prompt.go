package oracle

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
)

const systemPrompt = `You are an intelligent email categorizer.
Your job is to assign exactly ONE label to each email based on its metadata.

Rules:
1. Always return only the label, with no explanation or extra words.
2. Organization first: if the subject names an organization, use it as the
   label. Otherwise derive the organization from the sender's domain (the
   part after the @).
3. Prefer proper nouns or organizations in the subject; fall back to the
   sender's name or domain.
4. Use the snippet only to clarify the topic; use the topic as the label
   only when no organization is found.
5. Keep labels generic and groupable: 1-3 words, so many similar emails can
   share one label.
6. One email gets one label. Do not invent overly specific categories.

Examples:
Subject "Lenovo Support Subscription Update" from noreply@lenovo.com -> Lenovo
Subject "Here's Your OpenCV Friday Update!" from newsletter@opencv.org -> OpenCV`

const maxLabelWords = 3

// userPrompt renders one message plus the known label names into the
// oracle's input.
func userPrompt(msg mailbox.MessageSummary, knownLabels []string) string {
	attachments := "No attachments"
	if len(msg.Attachments) > 0 {
		lines := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			lines = append(lines, fmt.Sprintf(
				"File Name: %s - Mime Type: %s - Size: %d", att.Filename, att.MimeType, att.Size))
		}
		attachments = strings.Join(lines, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email:\n")
	fmt.Fprintf(&b, "- ID: %s\n", msg.ID)
	fmt.Fprintf(&b, "- Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "- From: %s\n", msg.From)
	fmt.Fprintf(&b, "- Date: %s\n", msg.Date)
	fmt.Fprintf(&b, "- Text Snippet: %s\n", msg.Snippet)
	fmt.Fprintf(&b, "- Attachments: %s\n", attachments)
	fmt.Fprintf(&b, "Existing Labels: %s\n", strings.Join(knownLabels, ", "))
	fmt.Fprintf(&b, "Assign a Label to the above email in AT MOST %d words. "+
		"Answer with the Label ALONE and NOTHING ELSE.\n", maxLabelWords)
	return b.String()
}

// sanitizeLabel normalizes oracle output into a usable label name: quotes
// and surrounding whitespace stripped, internal whitespace collapsed, word
// count capped.
func sanitizeLabel(raw string) string {
	cleaned := strings.Trim(strings.TrimSpace(raw), `"'`)
	words := strings.Fields(cleaned)
	if len(words) > maxLabelWords {
		words = words[:maxLabelWords]
	}
	return strings.Join(words, " ")
}
