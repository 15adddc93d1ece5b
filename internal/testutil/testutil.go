// Package testutil provides shared helpers for service and handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/blob"
	"github.com/ordertrail/potrack/internal/ledger"
	"go.uber.org/zap"
)

// TestEnv holds test environment resources
type TestEnv struct {
	Store  *ledger.Store
	Router *gin.Engine
	T      *testing.T
}

// SetupStore creates a ledger store backed by a file blob store in a temp dir.
// Each test gets an isolated data directory cleaned up by t.TempDir.
func SetupStore(t *testing.T) *ledger.Store {
	t.Helper()

	blobs, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}
	return ledger.NewStore(blobs, zap.NewNop())
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}
