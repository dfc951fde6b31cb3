package portal

import (
	"html/template"
	"log/slog"
	"net/http"

	connectshare "github.com/alinasr783/connect-share"
)

var pages = template.Must(template.New("layout").Parse(`{{define "top"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>
{{if .User}}<nav>{{.User.Email}} | <a href="/dashboard">dashboard</a> | <a href="/account">account</a>
<form method="post" action="/logout" style="display:inline"><button>sign out</button></form></nav>{{end}}
<h1>{{.Title}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}{{end}}
{{define "bottom"}}</body></html>{{end}}

{{define "login"}}{{template "top" .}}
<form method="post" action="/login">
<label>Email <input name="email" type="email" value="{{.Email}}"></label>
<label>Password <input name="password" type="password"></label>
<button>Sign in</button>
</form>
<p><a href="/signup">Create an account</a></p>
{{template "bottom" .}}{{end}}

{{define "signup"}}{{template "top" .}}
<form method="post" action="/signup">
<label>Full name <input name="full_name" value="{{.FullName}}"></label>
<label>Email <input name="email" type="email" value="{{.Email}}"></label>
<label>Password <input name="password" type="password"></label>
<label>I am a <select name="user_type">
<option value="provider">clinic provider</option>
<option value="doctor">doctor</option>
</select></label>
<button>Sign up</button>
</form>
{{template "bottom" .}}{{end}}

{{define "home"}}{{template "top" .}}
<p>Welcome, {{.User.Metadata.FullName}}.</p>
{{if not .Active}}<p class="notice">Your account is inactive. Listings and bookings are paused.</p>{{end}}
{{template "bottom" .}}{{end}}

{{define "account"}}{{template "top" .}}
<dl>
<dt>Email</dt><dd>{{.User.Email}}</dd>
<dt>Name</dt><dd>{{.User.Metadata.FullName}}</dd>
<dt>Type</dt><dd>{{.User.Metadata.UserType}}</dd>
<dt>Status</dt><dd>{{.User.Metadata.Status}}</dd>
</dl>
{{template "bottom" .}}{{end}}
`))

type page struct {
	Title    string
	Error    string
	Email    string
	FullName string
	User     *connectshare.Session
	Active   bool
}

func pageFor(title string, st connectshare.UserState) page {
	return page{Title: title, User: st.User, Active: st.IsActive}
}

func (p *Portal) render(w http.ResponseWriter, status int, name string, data page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		p.logger.Error("portal: render failed", slog.String("page", name), slog.String("error", err.Error()))
	}
}
