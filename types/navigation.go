package types

// Navigator is the page transition controller driven by the guard and by
// UNAUTHORIZED handling in the request pipeline.
type Navigator interface {
	Navigate(path string, replace bool)
	RedirectToLogin(returnPath string)
	CurrentPath() string
}

// LoadingIndicator is the blocking overlay toggled by the loading coordinator.
type LoadingIndicator interface {
	Show()
	Hide()
}

// ProgressIndicator is the route transition toggle bracketed by the guard.
type ProgressIndicator interface {
	SetLoading(loading bool)
}
