// Package server provides HTTP routing, middleware, OAuth handling, and the
// web wizard API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// When the user runs `mixcard auth login --browser`, a temporary HTTP server starts on localhost,
// handles the callback, and shuts down after receiving the OAuth token. Device code flow is the
// default and does not need this handler.
//
// # Wizard API
//
// [WizardHandler] exposes the pipeline phases over JSON: session creation
// builds and shuffles the playlist, then per-item match actions, a fetch pass,
// and a publish request advance it. Sessions persist between requests through
// the repositories package, so a browser refresh resumes where it left off.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
