package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// PrintHuman writes a readable run summary to the provided writer.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	mode := ""
	if rep.DryRun {
		mode = " (dry-run)"
	}
	fmt.Fprintf(&builder, "labelsweep reconcile%s — %d pages, %d messages\n", mode, rep.Pages, rep.Scanned)
	fmt.Fprintf(&builder, "  skipped (already labeled): %d\n", rep.Skipped)
	fmt.Fprintf(&builder, "  labels reused:             %d\n", rep.Reused)
	fmt.Fprintf(&builder, "  labels created:            %d\n", rep.Created)
	if len(rep.Failures) > 0 {
		builder.WriteString("\nFailures:\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(&builder, "  %s — %s\n", f.MessageID, f.Reason)
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write human report: %w", err)
	}
	return nil
}

// WriteJSON serializes the report as indented JSON to the provided writer.
func WriteJSON(rep Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
