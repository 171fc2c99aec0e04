package http

import (
	"encoding/json"
	"net/http"
)

// Handler возвращает HTTP handler для health check endpoint.
// 200 {"status":"ok"} если readiness не задан или возвращает true,
// иначе 503 {"status":"not ready"}.
func Handler(readiness func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if readiness != nil && !readiness() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// All объединяет несколько readiness-проверок: готов, только если готовы все
func All(checks ...func() bool) func() bool {
	return func() bool {
		for _, check := range checks {
			if check != nil && !check() {
				return false
			}
		}
		return true
	}
}
