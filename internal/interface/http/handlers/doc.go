// Package handlers contains HTTP health checks, viewer identity extraction
// and reusable middleware.
//
// # Health Checks
//
// Named checks run in parallel. Required checks decide readiness; optional
// checks (the scope cache and the export audit log) only mark the service
// degraded, since results can still be served without them:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("knack_api", handlers.NewBreakerCheck(knackClient))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddOptionalCheck("postgres", handlers.NewPingCheck(db))
//
// # Viewer Identity
//
// The embedding host forwards the viewer in the X-Viewer-Email and
// X-Viewer-Roles headers. RequireViewer validates the email and stores the
// viewer in the request context:
//
//	mw := handlers.RequireViewer(writeMissingIdentity)
//	mux.Handle("GET /api/v1/results", mw(resultsHandler))
//
// # Middleware Chain
//
//	h := handlers.ChainHandler(router,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
