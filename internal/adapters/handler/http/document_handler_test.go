package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/comitanigiacomo/vibedesk-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

// withTestUser trusts X-User-ID in place of a bearer token.
func withTestUser(c *gin.Context) {
	if uid := c.GetHeader("X-User-ID"); uid != "" {
		c.Set(middleware.ContextUserKey, domain.UserContext{UserID: uid})
	}
	c.Next()
}

func setupDocumentRouter() (*gin.Engine, *services.DocumentService) {
	gin.SetMode(gin.TestMode)

	svc := services.NewDocumentService(repository.NewInMemoryDocumentStore(), repository.NewInMemoryFeed(), nil)
	handler := adapterHTTP.NewDocumentHandler(svc)

	r := gin.New()
	r.Use(withTestUser)
	handler.RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func doRequest(r http.Handler, method, path, uid, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocumentHandler_GetAndPatch(t *testing.T) {
	t.Run("Missing document is 404", func(t *testing.T) {
		r, _ := setupDocumentRouter()
		w := doRequest(r, http.MethodGet, "/api/v1/me/document", "u1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Patch creates then merges", func(t *testing.T) {
		r, _ := setupDocumentRouter()

		w := doRequest(r, http.MethodPatch, "/api/v1/me/document", "u1",
			`{"totals": {"2024-03-10": 25}, "streakCount": 1, "updatedAt": "ignored"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, http.MethodPatch, "/api/v1/me/document", "u1", `{"notepadContent": "plan"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, http.MethodGet, "/api/v1/me/document", "u1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["isPremium"])
		assert.Equal(t, "plan", body["notepadContent"])
		assert.Equal(t, float64(1), body["streakCount"])
		assert.Equal(t, map[string]any{"2024-03-10": float64(25)}, body["totals"])
		assert.NotEqual(t, "ignored", body["updatedAt"])
		assert.NotEmpty(t, body["createdAt"])
	})

	t.Run("Fail: premium fields are forbidden", func(t *testing.T) {
		r, _ := setupDocumentRouter()

		w := doRequest(r, http.MethodPatch, "/api/v1/me/document", "u1", `{"isPremium": true}`)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doRequest(r, http.MethodPatch, "/api/v1/me/document", "u1", `{"notepadContent": "x", "stripeCustomerId": "cus_1"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doRequest(r, http.MethodGet, "/api/v1/me/document", "u1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Fail: bad bodies", func(t *testing.T) {
		r, _ := setupDocumentRouter()

		for _, body := range []string{`[1,2]`, `not json`, `{}`, `null`} {
			w := doRequest(r, http.MethodPatch, "/api/v1/me/document", "u1", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("Fail: no user in context", func(t *testing.T) {
		r, _ := setupDocumentRouter()
		w := doRequest(r, http.MethodGet, "/api/v1/me/document", "", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDocumentHandler_Events(t *testing.T) {
	r, svc := setupDocumentRouter()
	require.NoError(t, svc.Merge(context.Background(), "u1", domain.DocumentPatch{domain.FieldNotepadContent: "v1"}))

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/me/document/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "u1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan string, 4)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				events <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()

	next := func() map[string]any {
		t.Helper()
		select {
		case data := <-events:
			var doc map[string]any
			require.NoError(t, json.NewDecoder(bytes.NewBufferString(data)).Decode(&doc))
			return doc
		case <-time.After(3 * time.Second):
			t.Fatal("no event received")
			return nil
		}
	}

	first := next()
	assert.Equal(t, "v1", first["notepadContent"])

	require.NoError(t, svc.MergeTrusted(context.Background(), "u1", domain.DocumentPatch{domain.FieldIsPremium: true}))
	second := next()
	assert.Equal(t, true, second["isPremium"])
}

func httpRequest(method, path, token, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
