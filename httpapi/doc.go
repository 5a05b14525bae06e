// Package httpapi serves the authentication REST surface over net/http.
//
// Routes:
//
//	POST   /auth/register
//	POST   /auth/login
//	POST   /auth/refresh
//	POST   /auth/logout
//	GET    /auth/me
//	POST   /auth/forgot-password
//	POST   /auth/reset-password
//	GET    /healthz
//	GET    /admin/ping                      (analyst)
//	GET    /admin/users/{id}                (admin)
//	PUT    /admin/users/{id}/role           (admin)
//	POST   /admin/users/{id}/deactivate     (admin)
//	POST   /admin/users/{id}/activate       (admin)
//	GET    /admin/users/{id}/sessions       (admin)
//	DELETE /admin/users/{id}/sessions       (admin)
//
// Errors are JSON objects of the form {"error":{"code":"...","message":"..."}}.
// Every response carries Cache-Control: no-store.
//
// # Architecture boundaries
//
// Handlers decode requests, call one Engine method and map the result. They
// never touch Redis or the credential store directly.
package httpapi
