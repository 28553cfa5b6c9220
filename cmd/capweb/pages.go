// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/web"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed static
var staticFiles embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>capweb</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
{{- if .Profile }}
<h1>{{ .Profile.Name }}</h1>
{{- if .Profile.Picture }}
<img src="{{ .Profile.Picture }}" alt="">
{{- end }}
<p>{{ .Profile.Email }}</p>
<table>
{{- range .Profile.Claims }}
<tr><th>{{ .Caption }}</th><td>{{ .Value }}</td></tr>
{{- end }}
</table>
<form method="post" action="/logout"><button type="submit">Log out</button></form>
{{- else }}
<h1>Welcome</h1>
<p><a href="/profile">Log in</a></p>
{{- end }}
</body>
</html>
`))

type claimRow struct {
	Caption string
	Value   string
}

type profileView struct {
	Name    string
	Email   string
	Picture string
	Claims  []claimRow
}

type pageView struct {
	Profile *profileView
}

// newProfileView maps an Identity to what the profile page shows.  Claims
// keep the order in which the provider sent them.
func newProfileView(id *oidc.Identity) (*profileView, error) {
	caser := cases.Title(language.English)
	v := &profileView{
		Name:    id.Name(),
		Email:   id.Email(),
		Picture: id.Picture(),
	}
	if v.Name == "" {
		v.Name = id.Subject()
	}
	for _, name := range id.ClaimNames() {
		raw, _ := id.Claim(name)
		value, err := claimValue(raw)
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", name, err)
		}
		v.Claims = append(v.Claims, claimRow{
			Caption: caser.String(strings.NewReplacer("_", " ", "-", " ").Replace(name)),
			Value:   value,
		})
	}
	return v, nil
}

func claimValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func homeHandler(logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, logger, pageView{})
	}
}

func profileHandler(logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := web.IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		v, err := newProfileView(id)
		if err != nil {
			logger.Error("unable to build profile", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		render(w, logger, pageView{Profile: v})
	}
}

func render(w http.ResponseWriter, logger hclog.Logger, v pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, v); err != nil {
		logger.Error("unable to render page", "error", err)
	}
}
