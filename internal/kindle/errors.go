package kindle

import "errors"

var (
	// ErrLoginTimeout means the user did not complete the login flow
	// within the configured window.
	ErrLoginTimeout = errors.New("timed out waiting for Amazon login")

	// ErrSessionExpired means the stored browser session is no longer
	// authenticated and the run mode does not allow interactive login.
	// This needs a human step and must be surfaced, never retried.
	ErrSessionExpired = errors.New("Amazon session expired, re-run interactively to log in")

	// ErrNoBooksFound means the notebook page loaded but lists no books.
	// The library is empty; the session itself is fine.
	ErrNoBooksFound = errors.New("no books found in the Kindle notebook")

	// ErrProfileInUse means another scraper instance holds the browser
	// profile directory. Concurrent runs against one profile race the
	// same session state and are rejected.
	ErrProfileInUse = errors.New("browser profile directory is already in use")
)
