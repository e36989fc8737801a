package server

import (
	"bytes"
	"fmt"
	"html/template"
)

// loginView renders the hosted login page. The form posts back to
// /usernamepassword/login carrying the resolved client/audience fields along
// with the credentials.
type loginView struct {
	Domain      string
	ClientID    string
	Audience    string
	Scope       string
	RedirectURI string
	State       string
	Nonce       string
	LoginFailed bool
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Sign in to {{.Domain}}</title>
</head>
<body>
  <main class="login">
    <h1>Sign in to {{.Domain}}</h1>
    {{if .LoginFailed}}<p class="error">Wrong email or password.</p>{{end}}
    <form method="post" action="/usernamepassword/login">
      <input type="hidden" name="client_id" value="{{.ClientID}}"/>
      <input type="hidden" name="audience" value="{{.Audience}}"/>
      <input type="hidden" name="scope" value="{{.Scope}}"/>
      <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}"/>
      <input type="hidden" name="state" value="{{.State}}"/>
      <input type="hidden" name="nonce" value="{{.Nonce}}"/>
      <label>Email <input type="email" name="username" autocomplete="username"/></label>
      <label>Password <input type="password" name="password" autocomplete="current-password"/></label>
      <button type="submit">Log In</button>
    </form>
  </main>
</body>
</html>
`))

// usernamePasswordForm is the confirmation fragment returned after a
// successful credential login. It auto-posts the login context as wctx to
// /login/callback, continuing the browser flow.
var usernamePasswordFormTemplate = template.Must(template.New("wctx").Parse(`<!DOCTYPE html>
<html>
<head><title>Working...</title></head>
<body>
  <form method="post" name="hiddenform" action="/login/callback">
    <input type="hidden" name="wctx" value="{{.Wctx}}"/>
    <noscript><button type="submit">Continue</button></noscript>
  </form>
  <script>window.onload = function () { document.forms[0].submit(); };</script>
</body>
</html>
`))

// webMessageTemplate posts the authorization response to the opener window,
// carrying the same code payload the redirect path would append as query
// parameters.
var webMessageTemplate = template.Must(template.New("webmessage").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization Response</title></head>
<body>
  <script>
    (function (window, document) {
      var targetOrigin = {{.Origin}};
      var response = {
        type: "authorization_response",
        response: { code: {{.Code}}, state: {{.State}} }
      };
      var target = window.opener || window.parent;
      target.postMessage(response, targetOrigin);
    })(this, this.document);
  </script>
</body>
</html>
`))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
