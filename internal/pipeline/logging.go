package pipeline

import (
	"net/http"
	"time"

	"github.com/fedtaxi/hojaruta/pkg/logger"
	"go.uber.org/zap"
)

// Logging records method, path, status and latency. Header values are never logged.
func Logging(log *zap.SugaredLogger) Middleware {
	if log == nil {
		log = logger.L("http")
	}
	return func(req *http.Request, next Handler) (*http.Response, error) {
		start := time.Now()
		resp, err := next(req)
		fields := []interface{}{"method", req.Method, "path", req.URL.Path, "took", time.Since(start).Round(time.Millisecond).String()}
		if a := AttemptFrom(req.Context()); a != nil && a.Retried {
			fields = append(fields, "replay", true)
		}
		if err != nil {
			log.Warnw("request failed", append(fields, "error", err)...)
			return nil, err
		}
		fields = append(fields, "status", resp.StatusCode)
		if resp.StatusCode >= 500 {
			log.Warnw("request", fields...)
		} else {
			log.Debugw("request", fields...)
		}
		return resp, nil
	}
}
