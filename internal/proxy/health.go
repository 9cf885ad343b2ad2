package proxy

import "net/http"

// livenessHandler always answers 200 while the process serves HTTP.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
	}
}

// readinessHandler answers 200 once checker reports ready, 503 before and during shutdown.
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		status := http.StatusServiceUnavailable
		if checker.IsReady() {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}
