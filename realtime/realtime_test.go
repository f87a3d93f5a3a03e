package realtime_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/snabb-tech/dispatch/core/schema"
	"github.com/snabb-tech/dispatch/realtime"
	"github.com/snabb-tech/dispatch/schemas"
)

const testSecret = "test-secret"

func newTestAPI(t *testing.T) (*realtime.Hub, *mux.Router) {
	t.Helper()
	hub := realtime.NewHub(testSecret)
	router := mux.NewRouter()
	realtime.MustNewAPI(&realtime.Builder{
		Router:    router,
		Hub:       hub,
		Validator: schema.MustNewValidatorFromFS(schemas.FS),
	})
	return hub, router
}

func post(t *testing.T, router *mux.Router, path string, body interface{}) (int, []byte) {
	t.Helper()
	requestBody, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(requestBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec.Code, rec.Body.Bytes()
}

func TestAuthenticate(t *testing.T) {
	hub := realtime.NewHub(testSecret)
	presence := realtime.PresenceData{UserID: "w1"}

	for _, channel := range []string{"presence-workers", "private-tasks"} {
		token, err := hub.Authenticate("1234.5678", channel, presence)
		if err != nil {
			t.Fatal(err)
		}
		if token == "" {
			t.Fatalf("expected a token for channel %s", channel)
		}
		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, "1234.5678", claims["socket_id"])
		assert.Equal(t, channel, claims["channel"])
	}

	// public channels carry no token
	token, err := hub.Authenticate("1234.5678", "tasks", presence)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, token)
}

func TestAuthEndpoint(t *testing.T) {
	_, router := newTestAPI(t)

	status, body := post(t, router, "/api/websockets/auth", map[string]string{
		"socket_id":    "1234.5678",
		"channel_name": "presence-workers",
	})
	assert.Equal(t, http.StatusOK, status)
	var result map[string]string
	assert.NoError(t, json.Unmarshal(body, &result))
	assert.NotEmpty(t, result["auth"])

	// a public channel is not authenticated
	status, body = post(t, router, "/api/websockets/auth", map[string]string{
		"socket_id":    "1234.5678",
		"channel_name": "tasks",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	var apiError map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &apiError))
	assert.Equal(t, float64(422000), apiError["code"])
	assert.Equal(t, "UNAUTHORIZED", apiError["key"])
	assert.Equal(t, "Authentication error", apiError["message"])

	// incomplete requests fail validation
	status, body = post(t, router, "/api/websockets/auth", map[string]string{
		"socket_id": "1234.5678",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NoError(t, json.Unmarshal(body, &apiError))
	assert.Equal(t, "INVALID_REQUEST", apiError["key"])
	assert.Contains(t, apiError["message"], "channel_name is required")
}

func TestOnDutyEchoesTheBatch(t *testing.T) {
	_, router := newTestAPI(t)

	status, body := post(t, router, "/api/websockets/onduty", map[string]interface{}{
		"time_ms": 1724800000000,
		"events": []map[string]string{
			{"channel": "presence-workers-w1", "name": "channel_occupied"},
			{"channel": "presence-workers-w2", "name": "channel_vacated"},
		},
	})
	assert.Equal(t, http.StatusOK, status)

	var result struct {
		TimeMs float64 `json:"timeMs"`
		Events []struct {
			Channel string `json:"channel"`
			Name    string `json:"name"`
		} `json:"events"`
	}
	assert.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, float64(1724800000000), result.TimeMs)
	if assert.Len(t, result.Events, 2) {
		assert.Equal(t, "presence-workers-w1", result.Events[0].Channel)
		assert.Equal(t, "channel_occupied", result.Events[0].Name)
		assert.Equal(t, "channel_vacated", result.Events[1].Name)
	}

	// unknown occupancy events fail validation
	status, body = post(t, router, "/api/websockets/onduty", map[string]interface{}{
		"time_ms": 1724800000000,
		"events": []map[string]string{
			{"channel": "presence-workers-w1", "name": "channel_exploded"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	var apiError map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &apiError))
	assert.Equal(t, "INVALID_REQUEST", apiError["key"])
}

func TestWebhooksRejectNonJSONBody(t *testing.T) {
	_, router := newTestAPI(t)

	for _, path := range []string{"/api/websockets/auth", "/api/websockets/onduty"} {
		r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, path)
		var apiError map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiError))
		assert.Equal(t, float64(422000), apiError["code"], path)
		assert.Equal(t, "INVALID_REQUEST", apiError["key"], path)
		assert.Equal(t, "request body must be a JSON object", apiError["message"], path)
	}
}

func TestHubPublish(t *testing.T) {
	hub, router := newTestAPI(t)

	server := httptest.NewServer(router)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?channel=tasks"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var established realtime.Frame
	if err := conn.ReadJSON(&established); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "connection_established", established.Event)
	assert.Equal(t, "tasks", established.Channel)
	var handshake map[string]string
	assert.NoError(t, json.Unmarshal(established.Data, &handshake))
	assert.NotEmpty(t, handshake["socket_id"])

	hub.Publish("tasks", "new-task", []byte(`{"task":{"type":"pickup"}}`))

	var frame realtime.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "tasks", frame.Channel)
	assert.Equal(t, "new-task", frame.Event)
	assert.JSONEq(t, `{"task":{"type":"pickup"}}`, string(frame.Data))

	// events on other channels do not reach this subscriber
	hub.Publish("workers", "worker-updated", []byte(`{}`))
	hub.Publish("tasks", "new-task", []byte(`{"task":{"type":"dropoff"}}`))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "new-task", frame.Event)
	assert.JSONEq(t, `{"task":{"type":"dropoff"}}`, string(frame.Data))
}

func TestServeWSRequiresChannel(t *testing.T) {
	_, router := newTestAPI(t)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
