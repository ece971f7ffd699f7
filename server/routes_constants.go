package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - OAuth providers
	RouteAuthBegin    = "/api/auth/{provider}"
	RouteAuthCallback = "/api/auth/callback/{provider}"
	RouteAuthLogout   = "/api/auth/out"

	// Auth Routes - Email and password
	RouteEmailSignup = "/api/auth/email/signup"
	RouteEmailSignin = "/api/auth/email/signin"

	// Account Routes
	RouteUser = "/api/user"

	// Page Routes
	RoutePages      = "/api/pages"
	RoutePage       = "/api/pages/{id}"
	RoutePageUpload = "/api/pages/upload"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
