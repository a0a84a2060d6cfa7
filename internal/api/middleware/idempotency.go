package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"
	defaultIdempotencyTTL  = 24 * time.Hour
	idempotencySweepEvery  = 128
)

type idempotencyRecord struct {
	requestHash string
	done        bool
	status      int
	contentType string
	body        []byte
	expiresAt   time.Time
}

// IdempotencyStore remembers responses of keyed writes for a while.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]*idempotencyRecord
	calls   int
}

// NewIdempotencyStore creates an in-memory store; ttl <= 0 uses 24h.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]*idempotencyRecord),
	}
}

type beginResult int

const (
	beginNew beginResult = iota
	beginReplay
	beginConflict
	beginInFlight
)

// begin claims key for a request with requestHash, or reports what is stored.
func (s *IdempotencyStore) begin(key, requestHash string) (beginResult, idempotencyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%idempotencySweepEvery == 0 {
		for k, r := range s.records {
			if r.done && now.After(r.expiresAt) {
				delete(s.records, k)
			}
		}
	}

	if r, ok := s.records[key]; ok && !(r.done && now.After(r.expiresAt)) {
		switch {
		case r.requestHash != requestHash:
			return beginConflict, *r
		case !r.done:
			return beginInFlight, *r
		default:
			return beginReplay, *r
		}
	}
	s.records[key] = &idempotencyRecord{requestHash: requestHash}
	return beginNew, idempotencyRecord{}
}

func (s *IdempotencyStore) complete(key string, status int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return
	}
	r.done = true
	r.status = status
	r.contentType = contentType
	r.body = body
	r.expiresAt = s.now().Add(s.ttl)
}

func (s *IdempotencyStore) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response when a successful write is
// retried with the same Idempotency-Key and body. The same key with a different body
// is a conflict. Requests without the header pass through untouched.
func IdempotencyMiddleware(store *IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		// Read request body
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				c.Abort()
				return
			}
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
			c.Abort()
			return
		}

		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		// Calculate request hash
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])
		scopedKey := c.Request.Method + " " + c.FullPath() + " " + idempotencyKey

		result, record := store.begin(scopedKey, requestHash)
		switch result {
		case beginConflict:
			c.JSON(http.StatusConflict, gin.H{
				"error": "idempotency key conflict: same key used with different payload",
			})
			c.Abort()
			return
		case beginInFlight:
			c.JSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			c.Abort()
			return
		case beginReplay:
			logger.Debug("Replaying idempotent response", zap.String("key", idempotencyKey))
			c.Header(IdempotentReplayHeader, "true")
			c.Data(record.status, record.contentType, record.body)
			c.Abort()
			return
		}

		stored := false
		defer func() {
			// only successful writes are remembered; anything else may be retried
			if !stored {
				store.release(scopedKey)
			}
		}()

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		store.complete(scopedKey, status, writer.Header().Get("Content-Type"), writer.body.Bytes())
		stored = true
	}
}
