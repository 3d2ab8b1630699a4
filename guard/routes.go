package guard

import (
	"net/url"
	"strings"
)

const (
	PathHome           = "/"
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathForgetPassword = "/forget-password"
	PathNotFound       = "/404"
	PathForbidden      = "/403"
	PathServerError    = "/500"

	RedirectParam = "redirect"
)

// DefaultAllowList holds the routes reachable without a session.
var DefaultAllowList = []string{
	PathLogin,
	PathRegister,
	PathForgetPassword,
	PathNotFound,
	PathForbidden,
	PathServerError,
}

type Meta struct {
	Title               string
	RequiredPermissions []string
}

type Route struct {
	Path string
	Meta Meta
}

// LoginPath appends the encoded return path to the login route.
func LoginPath(loginPath, redirect string) string {
	if loginPath == "" {
		loginPath = PathLogin
	}
	if redirect == "" {
		return loginPath
	}

	sep := "?"
	if strings.Contains(loginPath, "?") {
		sep = "&"
	}

	return loginPath + sep + RedirectParam + "=" + url.QueryEscape(redirect)
}

// routePath drops the query and fragment of a full path.
func routePath(full string) string {
	if i := strings.IndexAny(full, "?#"); i >= 0 {
		return full[:i]
	}
	return full
}
