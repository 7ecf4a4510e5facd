// Package templates renders the console's HTML pages as templ components.
//
// Edit the .templ sources and run `templ generate`; the *_templ.go files are
// generated.
package templates

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/history"
)

// ImportView is the data behind the bulk upload page.
type ImportView struct {
	Session   core.Snapshot
	Targets   []core.TargetDefinition
	Encodings []string
	MaxSize   int64
}

type navItem struct{ Path, Label string }

var navItems = []navItem{
	{"/", "Bulk Upload"},
	{"/templates", "Download Templates"},
	{"/history", "Import History"},
}

// recordsJSON pretty-prints records for the preview pane. The result is
// escaped by templ on output.
func recordsJSON(records []core.Record) (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return "", err
	}
	return b.String(), nil
}

func megabytes(n int64) string {
	return strconv.FormatInt(n>>20, 10)
}

func templateURL(t core.Target, f core.Format) templ.SafeURL {
	return templ.URL("/api/templates/" + url.PathEscape(string(t)) + "?format=" + string(f))
}

func runStatus(run history.Run) string {
	if run.Error == "" {
		return string(run.Status)
	}
	return string(run.Status) + ": " + run.Error
}
