package httpapi

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"github.com/shestoi/paygate/internal/gateway"
)

var redirectForm = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting...</title></head>
<body onload="document.forms[0].submit();">
<form action="{{.URL}}" method="post">
<p>Redirecting to payment page...</p>
{{range $name, $value := .Fields}}<input type="hidden" name="{{$name}}" value="{{$value}}">
{{end}}<input type="submit" value="Continue">
</form>
</body>
</html>
`))

// responseRedirector sends the customer off-site over the current HTTP response.
type responseRedirector struct {
	w http.ResponseWriter
	r *http.Request

	done bool
}

func (rr *responseRedirector) Redirect(_ context.Context, resp gateway.Response) error {
	rr.done = true
	if strings.EqualFold(resp.RedirectMethod(), http.MethodPost) {
		rr.w.Header().Set("Content-Type", "text/html; charset=utf-8")
		rr.w.Header().Set("Cache-Control", "no-store")
		return redirectForm.Execute(rr.w, struct {
			URL    string
			Fields map[string]string
		}{URL: resp.RedirectURL(), Fields: resp.RedirectData()})
	}
	http.Redirect(rr.w, rr.r, resp.RedirectURL(), http.StatusFound)
	return nil
}
