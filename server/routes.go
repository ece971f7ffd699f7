package server

import "net/http"

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("GET "+RouteAuthBegin, ChainMiddleware(s.BeginLoginHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...)) // For form_post response mode
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteEmailSignup, ChainMiddleware(s.SignupHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteEmailSignin, ChainMiddleware(s.SigninHandler(), s.AuthMiddleware()...))

	// ACCOUNT
	s.RegisterRouteHandler("GET "+RouteUser, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("DELETE "+RouteUser, ChainMiddleware(s.DeleteUserHandler(), s.APIMiddleware(s.RequireSession())...))

	// PAGES
	if s.pages != nil {
		s.RegisterRouteHandler("GET "+RoutePages, ChainMiddleware(s.ListPagesHandler(), s.APIMiddleware(s.RequireSession())...))
		s.RegisterRouteHandler("POST "+RoutePages, ChainMiddleware(s.CreatePageHandler(), s.APIMiddleware(s.RequireSession())...))
		s.RegisterRouteHandler("DELETE "+RoutePage, ChainMiddleware(s.DeletePageHandler(), s.APIMiddleware(s.RequireSession())...))
	}
	s.RegisterRouteHandler("POST "+RoutePageUpload, ChainMiddleware(s.UploadHandler(), s.APIMiddleware(s.RequireSession())...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))

	// OPERATIONAL
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics)
	}
}
