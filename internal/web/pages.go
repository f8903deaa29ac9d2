package web

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="stylesheet" href="/static/css/app.css">
<script src="/static/js/app.js" defer></script>
</head>
<body>
<main>
%s
</main>
</body>
</html>
`, html.EscapeString(title), body)
		return err
	})
}

func HomePage() templ.Component {
	return page("day.party", `<h1>day.party</h1>
<p>Plan one day at a time. Fifteen-minute slots, one thing ongoing.</p>
<p><a href="/app">Open your planner</a></p>`)
}

func LoginPage() templ.Component {
	return page("Sign in · day.party", `<h1>Sign in</h1>
<form class="login">
<p><input type="email" name="email" placeholder="you@example.com" required></p>
<p><button type="submit">Email me a link</button></p>
<p class="note"></p>
</form>`)
}

func PlannerPage() templ.Component {
	return page("Today · day.party", `<h1>Today</h1>
<div class="capacity-bar"><div class="fill"></div></div>
<div id="planner"></div>`)
}
