package idempotency

import (
	"bytes"
	"net/http"

	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
)

// responseRecorder buffers a handler's response so it can be cached before
// being written to the client.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware wraps a mutating handler with the idempotency contract: a
// request carrying an already-seen, unexpired key gets the cached response
// byte for byte, without invoking the handler again. Requests without a key
// pass through untouched.
func Middleware(store *Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := req.Header.Get(Header)
		if key == "" {
			next.ServeHTTP(w, req)
			return
		}

		won, rec, err := store.Reserve(key)
		if err != nil {
			logging.Error("Idempotency reserve failed", err,
				map[string]interface{}{"key": key})
			next.ServeHTTP(w, req)
			return
		}
		if !won {
			if rec != nil {
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(rec.StatusCode)
				w.Write(rec.Body)
				return
			}
			// Another request holding this key is mid-flight. Running the
			// handler now would apply the mutation twice, so tell the
			// caller to come back for the replay.
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, req)

		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}
		if err := store.Record(key, recorder.status, recorder.body.Bytes()); err != nil {
			logging.Error("Failed to record idempotent response", err,
				map[string]interface{}{"key": key})
		}
	})
}
