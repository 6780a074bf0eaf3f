// Package services defines the [Connector] contract consumed by the sync engine and implements it for
// Spotify, Apple Music and YouTube Music.
//
// # Connector Contract
//
// Connectors are generic capabilities: the engine never inspects service-specific data. Each call is
// independent, listing calls either return every page or fail, and [Connector.SearchTrack] returns a nil
// track for "no match".
//
// # Authentication
//
// Spotify and YouTube implement [OAuthConnector]. Tokens are persisted in the state store as
// [golang.org/x/oauth2.Token] values and refreshed through [oauth2.Config.TokenSource]; concurrent
// refreshes are collapsed with singleflight. Apple Music uses a developer token plus a music user token
// submitted by the web client ([AppleMusicConnector.SetTokens]).
//
// # Transport
//
// All connectors share an apiClient that applies a per-request timeout, paces requests with a
// [rate.Limiter], and classifies failures:
//   - [shared.ErrNotAuthenticated] : 401/403 or missing token
//   - [shared.ErrTransient] : 429, 5xx, network errors and timeouts
//   - [shared.ErrAPIRequest] : any other non-2xx (404 additionally wraps [shared.ErrPlaylistNotFound])
//
// # Matching
//
// Search results are compared by [models.Track.Signature]. An exact match wins; otherwise the top result
// is returned as a lower-confidence fallback.
package services
