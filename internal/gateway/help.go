// ABOUTME: Serves help documentation rendered from embedded markdown files
// ABOUTME: Topics map one-to-one to files under docs/help

package gateway

import (
	"bytes"
	"embed"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed docs/help/*.md
var helpDocsFS embed.FS

// handleHelp lists available help topics or renders one as HTML.
func (g *Gateway) handleHelp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	topic := strings.TrimPrefix(r.URL.Path, "/api/help")
	topic = strings.Trim(topic, "/")

	if topic == "" {
		g.handleHelpIndex(w)
		return
	}

	// Topic names map directly to file names; reject anything with a
	// path separator so the embed FS cannot be traversed.
	if strings.ContainsAny(topic, "/\\.") {
		sendJSONError(w, http.StatusNotFound, "unknown help topic")
		return
	}

	mdContent, err := helpDocsFS.ReadFile(path.Join("docs/help", topic+".md"))
	if err != nil {
		sendJSONError(w, http.StatusNotFound, "unknown help topic")
		return
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert(mdContent, &htmlBuf); err != nil {
		g.logger.Error("rendering help topic", "topic", topic, "error", err)
		htmlBuf.Reset()
		htmlBuf.WriteString("<p>Failed to render help content.</p>")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(htmlBuf.Bytes())
}

// handleHelpIndex returns the list of help topics with display titles.
func (g *Gateway) handleHelpIndex(w http.ResponseWriter) {
	entries, err := helpDocsFS.ReadDir("docs/help")
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "help docs unavailable")
		return
	}

	type topicInfo struct {
		Topic string `json:"topic"`
		Title string `json:"title"`
	}
	topics := make([]topicInfo, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".md")
		topics = append(topics, topicInfo{Topic: name, Title: formatHelpTitle(name)})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })

	sendJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// formatHelpTitle turns a file slug into a display title, e.g.
// "getting-started" -> "Getting Started".
func formatHelpTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = fmt.Sprintf("%s%s", strings.ToUpper(word[:1]), word[1:])
	}
	return strings.Join(words, " ")
}
