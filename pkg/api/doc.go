// Package api provides the HTTP server of docker-monitor.
//
// Handlers are registered with Go ServeMux patterns and wrapped with bearer token authentication.
// Errors are written as RFC 7807 problem documents whose "error" member is a short machine code.
//
// Usage example:
//
//	server := api.New(token, ":8080")
//	server.RegisterFunc("GET /v1/health", hostHandler.HandleHealth)
//	if err := server.Start(ctx, true); err != nil {
//	    logrus.WithError(err).Error("API stopped")
//	}
package api
