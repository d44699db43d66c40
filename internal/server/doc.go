// Package server exposes the rotation engine over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it on
// top of chi. [Middleware] wraps handlers in the order they are added; middleware must be added
// before any route is registered.
//
// # API
//
// Every mutating endpoint maps to one [actions.Action] and therefore runs atomically on the
// scheduler goroutine. The caller's identity is read from the X-Voter header (or the voter query
// parameter) and is required for votes.
//
//	GET    /health
//	GET    /api/queue?page=N
//	POST   /api/queue               {"text": "ids or links"}
//	DELETE /api/queue/{id}
//	POST   /api/tracks/{id}/like
//	POST   /api/tracks/{id}/dislike
//	POST   /api/like                votes on the current track
//	POST   /api/dislike
//	POST   /api/player/toggle
//	PUT    /api/player/volume       {"volume": 70} or {"volume": null} to toggle mute
//	POST   /api/say                 {"text": "hello"}
//	GET    /api/settings
//	PUT    /api/settings/{field}    {"value": "3"}
//	GET    /api/events              websocket stream of rotation events
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds
// routes, so a handler owns its route definitions. [EventStream] is registered this way.
package server
