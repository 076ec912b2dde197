package auth

import (
	"errors"
	"net/http"
	"time"

	loggerpkg "LuminYield/pkg/logger"
)

// Middleware 返回一个 HTTP 中间件，校验静态令牌并记录审计日志。
// event 为空时以请求路径作为审计事件名。
func (s *Service) Middleware(event string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			if err := s.Authenticate(r.Header.Get("Authorization")); err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrInvalidToken) {
					status = http.StatusForbidden
				}
				http.Error(w, http.StatusText(status), status)
				loggerpkg.Audit().Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}

			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r)

			name := event
			if name == "" {
				name = r.URL.Path
			}
			loggerpkg.Audit().Info("api_request",
				"event", name,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// auditWriter 包装 http.ResponseWriter 以捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层实现。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
