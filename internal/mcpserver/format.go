package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/stats"
)

const connectionPreview = 150

func formatSearch(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return resp.Message()
	}
	items := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. **%s** (Score: %.3f)\n", i+1, r.Title, r.Score)
		fmt.Fprintf(&b, "   Path: %s\n", r.Path)
		fmt.Fprintf(&b, "   Tags: %s\n", tagsLabel(r.Tags))
		fmt.Fprintf(&b, "   Created: %s | Modified: %s\n", dateLabel(r.CreatedAt), dateLabel(r.ModifiedAt))
		fmt.Fprintf(&b, "   Preview: %s...\n", r.Preview)
		if r.Content != "" {
			fmt.Fprintf(&b, "\n%s\n", r.Content)
		}
		items[i] = b.String()
	}
	return fmt.Sprintf("Found %d notes matching %q:\n\n%s", len(resp.Results), resp.Query, strings.Join(items, "\n"))
}

func formatConnections(resp *search.Response) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No related notes found for %q with minimum score %.2f.", resp.Query, resp.MinScore)
	}
	items := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		items[i] = fmt.Sprintf("%d. **%s** (Similarity: %.3f)\n   Path: %s\n   Tags: %s\n   Connection: %s...\n",
			i+1, r.Title, r.Score, r.Path, tagsLabel(r.Tags), models.Truncate(r.Preview, connectionPreview))
	}
	return fmt.Sprintf("Found %d notes related to %q:\n\n%s", len(resp.Results), resp.Query, strings.Join(items, "\n"))
}

func formatNote(doc *models.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "**Path:** %s\n", doc.Path)
	fmt.Fprintf(&b, "**Tags:** %s\n", tagsLabel(doc.Tags))
	fmt.Fprintf(&b, "**Created:** %s\n", timeLabel(doc.CreatedAt))
	fmt.Fprintf(&b, "**Modified:** %s\n\n", timeLabel(doc.ModifiedAt))
	b.WriteString("## Content:\n")
	b.WriteString(doc.Body)
	return b.String()
}

func formatList(list *noteservice.NoteList) string {
	if len(list.Notes) == 0 {
		return list.Message()
	}
	items := make([]string, len(list.Notes))
	for i, n := range list.Notes {
		items[i] = fmt.Sprintf("%d. **%s**\n   Path: %s\n   Tags: %s\n   Created: %s | Modified: %s",
			i+1, n.Title, n.Path, tagsLabel(n.Tags), dateLabel(n.CreatedAt), dateLabel(n.ModifiedAt))
	}
	return fmt.Sprintf("Found %d notes (showing %d):\n\n%s", list.Total, len(list.Notes), strings.Join(items, "\n\n"))
}

func formatStats(st *stats.Stats, session models.SessionState) string {
	var b strings.Builder
	b.WriteString("# Index Statistics\n\n")
	fmt.Fprintf(&b, "- Notes stored: %d (%s)\n", st.Count, st.TotalSize)
	vectors := fmt.Sprintf("%d", st.VectorCount)
	if st.VectorCountEstimated {
		vectors += " (estimated)"
	}
	fmt.Fprintf(&b, "- Vectors: %s, %d dimensions\n", vectors, st.Dimensions)
	if !st.Consistent {
		b.WriteString("- Warning: the stores disagree; run a sync or cleanup\n")
	}
	if len(st.SampleFiles) > 0 {
		b.WriteString("\nSample files:\n")
		for _, s := range st.SampleFiles {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Key, s.Size)
		}
	}
	b.WriteString("\nThis session:\n")
	fmt.Fprintf(&b, "- Searches: %d\n", session.SearchCount)
	if session.LastSearchQuery != "" {
		fmt.Fprintf(&b, "- Last query: %q\n", session.LastSearchQuery)
	}
	fmt.Fprintf(&b, "- Notes indexed: %d\n", session.TotalNotesIndexed)
	return b.String()
}

func tagsLabel(tags []string) string {
	if len(tags) == 0 {
		return "None"
	}
	return strings.Join(tags, ", ")
}

func dateLabel(s string) string {
	t, err := models.ParseTime(s)
	if s == "" || err != nil {
		return "Unknown"
	}
	return t.Format("2006-01-02")
}

func timeLabel(s string) string {
	t, err := models.ParseTime(s)
	if s == "" || err != nil {
		return "Unknown"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
