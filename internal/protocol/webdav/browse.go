package webdav

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodav/pkg/dav"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<table>
<tr><th>Name</th><th>Size</th><th>Modified</th></tr>
{{- if .Parent}}
<tr><td><a href="{{.Parent}}">../</a></td><td></td><td></td></tr>
{{- end}}
{{- range .Entries}}
<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Size}}</td><td title="{{.Exact}}">{{.Modified}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type listingEntry struct {
	Name     string
	Href     string
	Size     string
	Modified string
	Exact    string
}

type listingPage struct {
	Title   string
	Parent  string
	Entries []listingEntry
}

// serveListing renders an HTML index of a collection.
func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, res *dav.Resource) (int, error) {
	children, err := h.tree.List(r.Context(), res.Path)
	if err != nil {
		return 0, err
	}

	page := listingPage{Title: h.name + res.Path}
	if res.Path != "/" {
		page.Parent = h.href(dav.Parent(res.Path), true)
	}

	for _, child := range children {
		entry := listingEntry{
			Name:     child.DisplayName(),
			Href:     h.href(child.Path, child.IsCollection),
			Modified: humanize.Time(child.LastModified),
			Exact:    child.LastModified.UTC().Format(time.RFC1123),
		}
		if child.IsCollection {
			entry.Name += "/"
		} else {
			entry.Size = humanize.IBytes(uint64(child.ContentLength))
		}
		page.Entries = append(page.Entries, entry)
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, page); err != nil {
		return 0, dav.WrapError(dav.ErrInternal, "failed to render listing", res.Path, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
	return 0, nil
}
