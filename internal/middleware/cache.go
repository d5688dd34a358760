package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/admission-seat-allocation/internal/config"
)

// cachedResponse is what the response cache stores per key.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// skipHeaders are never replayed from the cache.
var skipHeaders = map[string]bool{
    echo.HeaderContentLength: true,
    "X-Cache":                true,
}

// teeWriter forwards the response to the client and keeps a copy of at
// most limit bytes.  size counts every byte written so oversized
// responses can be recognised after the fact.
type teeWriter struct {
    http.ResponseWriter
    status int
    copy   bytes.Buffer
    size   int
    limit  int
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    if room := w.limit - w.size; w.limit <= 0 || room >= len(b) {
        w.copy.Write(b)
    } else if room > 0 {
        w.copy.Write(b[:room])
    }
    w.size += len(b)
    return w.ResponseWriter.Write(b)
}

func (w *teeWriter) complete() bool { return w.limit <= 0 || w.size <= w.limit }

// responseKey hashes the parts of the request the key strategy selects.
// The concrete path is used, never the route pattern, so
// /v1/programs/1/concession-types and /v1/programs/2/concession-types get
// separate entries.
func responseKey(cfg config.CacheConfig, r *http.Request) string {
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", r.URL.Path}
    case "method_route":
        parts = []string{"method", r.Method, "route", r.URL.Path}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", r.URL.Path, "q", r.URL.RawQuery}
    default:
        parts = []string{"route", r.URL.Path, "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

func replay(c echo.Context, cr cachedResponse) error {
    h := c.Response().Header()
    for k, vals := range cr.Header {
        if skipHeaders[http.CanonicalHeaderKey(k)] {
            continue
        }
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(cr.Status)
    _, err := c.Response().Write(cr.Body)
    return err
}

// NewRedisCache caches 200 responses of the wrapped routes in Redis.
// Headers are stored with the body so a hit replays the original
// response.  Redis failures are logged and the request is served
// normally.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] {
                return next(c)
            }
            ctx := req.Context()
            key := responseKey(cfg, req)

            raw, err := rdb.Get(ctx, key).Bytes()
            switch {
            case err == nil:
                var cr cachedResponse
                if jerr := json.Unmarshal(raw, &cr); jerr == nil && cr.Status != 0 {
                    return replay(c, cr)
                }
                log.Warn("response cache: dropping unreadable entry", zap.String("key", key))
            case !errors.Is(err, redis.Nil):
                log.Warn("response cache: get failed", zap.String("key", key), zap.Error(err))
            }

            tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = tw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if tw.status != http.StatusOK || !tw.complete() {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status: tw.status,
                Header: c.Response().Header().Clone(),
                Body:   tw.copy.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil {
                log.Warn("response cache: set failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}
