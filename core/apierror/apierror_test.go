package apierror

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/stretchr/testify/assert"
)

func TestErrorIdentities(t *testing.T) {
	cases := []struct {
		err     *APIError
		code    int
		key     string
		message string
		status  int
	}{
		{NotFound("organization"), 404002, "ORGANIZATION_NOT_FOUND", "No such organization exists", http.StatusNotFound},
		{NotFound("task"), 404003, "TASK_NOT_FOUND", "No such task exists", http.StatusNotFound},
		{NotFound("team"), 404004, "TEAM_NOT_FOUND", "No such team exists", http.StatusNotFound},
		{NotFound("user"), 404005, "USER_NOT_FOUND", "No such user exists", http.StatusNotFound},
		{NotFound("worker"), 404010, "WORKER_NOT_FOUND", "No such worker exists", http.StatusNotFound},
		{AlreadyExists("contact"), 409007, "CONTACT_ALREADY_EXISTS", "A contact with the given unique fields already exists", http.StatusConflict},
		{AlreadyExists("user"), 409005, "USER_ALREADY_EXISTS", "A user with the given unique fields already exists", http.StatusConflict},
		{InvalidRequest("name is required"), 422000, "INVALID_REQUEST", "name is required", http.StatusUnprocessableEntity},
		{InvalidRequest(""), 422000, "INVALID_REQUEST", "Invalid Request", http.StatusUnprocessableEntity},
		// the authentication error keeps its historical 422 code prefix
		{Unauthorized(), 422000, "UNAUTHORIZED", "Authentication error", http.StatusUnauthorized},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code, c.key)
		assert.Equal(t, c.key, c.err.Key)
		assert.Equal(t, c.message, c.err.Message, c.key)
		assert.Equal(t, c.status, c.err.Status, c.key)
		assert.True(t, c.err.IsPublic, c.key)
		assert.Equal(t, c.message, c.err.Error())
	}
}

func TestRenderPublicError(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/tasks/xyz", nil)
	Render(rec, r, NotFound("task"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(404003), body["code"])
	assert.Equal(t, "TASK_NOT_FOUND", body["key"])
	assert.Equal(t, "No such task exists", body["message"])
	// the wire shape is exactly code, key and message
	assert.Len(t, body, 3)
}

func TestRenderHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/tasks/xyz", nil)
	Render(rec, r, errors.New(`pq: invalid input syntax for type uuid: "xyz"`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(500000), body["code"])
	assert.Equal(t, "UNKNOWN_ERROR", body["key"])
	assert.NotContains(t, body["message"], "uuid")
}
