// Package server exposes the sync engine as a JSON API and hosts service authorization callbacks.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/groups/{id}/runs").
//
// # API
//
//	GET    /api/status                 scheduler state, last sweep, connector status
//	GET    /api/playlists              playlists per ready service (?service= to filter)
//	GET    /api/groups                 list sync groups
//	POST   /api/groups                 create a group
//	DELETE /api/groups/{id}            delete a group and its snapshot
//	POST   /api/groups/{id}/playlists  replace a group's playlist mapping
//	GET    /api/groups/{id}/runs       recent sync runs of a group
//	POST   /api/sync                   run one sweep now
//
// Unknown services answer 404, malformed payloads 400 and missing groups 404.
//
// # Authorization
//
// [AuthHandler] redirects /auth/{service}/start to the service's consent page and completes the flow on
// /auth/{service}/callback. The connector checks the state parameter against the one it stored, so
// a replayed callback fails. Apple Music has no redirect flow; its tokens are posted to
// /api/apple/developer-token and /api/apple/token.
//
// The first completed authorization is also delivered on [AuthHandler.Result], which lets the CLI run a
// temporary server and wait for the callback.
package server
