package server

import (
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/cors"
)

// originAllowed implements the browser-origin policy: any https origin is
// fine, http is restricted to localhost and RFC1918 addresses so a dev page
// on a LAN box still works without opening the API to arbitrary http sites.
func originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.To4() != nil && ip.IsPrivate()
	default:
		return false
	}
}

// originGuard rejects requests from disallowed origins outright instead of
// merely withholding CORS headers, so server logs show the refusal.
func originGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !originAllowed(origin) {
			writeError(w, http.StatusForbidden, "Forbidden origin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// preflight answers every OPTIONS request with 204 and the CORS grant. The
// origin guard has already rejected disallowed origins by the time this runs.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")
		h.Set("Access-Control-Max-Age", "86400")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		h.Add("Vary", "Origin")
		w.WriteHeader(http.StatusNoContent)
	})
}

func corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return originAllowed(origin)
		},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
}

// methodGuard answers 405 for anything other than GET, HEAD, and the
// preflight OPTIONS the CORS layer already handled.
func methodGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}
