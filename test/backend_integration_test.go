package test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
)

type BackendIntegrationTestSuite struct {
	IntegrationTestSuite
}

func TestBackendIntegrationTestSuite(t *testing.T) {
	suite.Run(t, &BackendIntegrationTestSuite{})
}

// raw talks to the running HTTP server directly so error bodies can be
// inspected, which the convenience client does not expose.
func (s *BackendIntegrationTestSuite) raw(method, path string, body interface{}) (int, []byte) {
	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(requestBody)
	}
	request, err := http.NewRequest(method, "http://localhost:8080"+path, reader)
	s.Require().NoError(err)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer res.Body.Close()
	buffer, err := io.ReadAll(res.Body)
	s.Require().NoError(err)
	return res.StatusCode, buffer
}

func (s *BackendIntegrationTestSuite) TestOrganizationLifecycle() {
	org := map[string]interface{}{}
	_, err := s.client.RawPost("/api/organizations", map[string]interface{}{
		"name":  "postgres couriers",
		"email": "pg@couriers.example",
	}, &org)
	s.Require().NoError(err)
	s.Require().NotEmpty(org["id"])
	id := org["id"].(string)

	got := map[string]interface{}{}
	_, err = s.client.RawGet("/api/organizations/"+id, &got)
	s.Require().NoError(err)
	s.Equal("postgres couriers", got["name"])

	// the unique index is enforced by the database
	status, body := s.raw(http.MethodPost, "/api/organizations",
		map[string]interface{}{"name": "postgres couriers"})
	s.Equal(http.StatusConflict, status)
	var e struct {
		Code int    `json:"code"`
		Key  string `json:"key"`
	}
	s.Require().NoError(json.Unmarshal(body, &e))
	s.Equal(409002, e.Code)
	s.Equal("ORGANIZATION_ALREADY_EXISTS", e.Key)

	// a malformed id breaks the uuid cast inside Postgres
	status, body = s.raw(http.MethodGet, "/api/organizations/not-a-uuid", nil)
	s.Equal(http.StatusInternalServerError, status)
	s.Require().NoError(json.Unmarshal(body, &e))
	s.Equal(500000, e.Code)

	status, body = s.raw(http.MethodGet, "/api/organizations/"+uuid.New().String(), nil)
	s.Equal(http.StatusNotFound, status)
	s.Require().NoError(json.Unmarshal(body, &e))
	s.Equal(404002, e.Code)

	var deleteBody []byte
	_, err = s.client.RawDelete("/api/organizations/"+id, &deleteBody)
	s.Require().NoError(err)
	s.Equal("OK", string(deleteBody))

	status, _ = s.raw(http.MethodGet, "/api/organizations/"+id, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *BackendIntegrationTestSuite) TestListOrdering() {
	ids := make([]string, 5)
	for i := range ids {
		task := map[string]interface{}{}
		_, err := s.client.RawPost("/api/tasks", map[string]interface{}{
			"type": "pickup",
		}, &task)
		s.Require().NoError(err)
		ids[i] = task["id"].(string)
		time.Sleep(10 * time.Millisecond) // distinct created_at timestamps
	}

	var listed []map[string]interface{}
	_, err := s.client.RawGet("/api/tasks?limit=3", &listed)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	// newest first
	s.Equal(ids[4], listed[0]["id"])
	s.Equal(ids[3], listed[1]["id"])
	s.Equal(ids[2], listed[2]["id"])
}

func (s *BackendIntegrationTestSuite) TestTaskNotificationReachesKafka() {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   []string{s.kafkaAddr},
		Topic:     "tasks",
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	task := map[string]interface{}{}
	_, err := s.client.RawPost("/api/tasks", map[string]interface{}{
		"type":     "dropoff",
		"comments": "leave at the door",
	}, &task)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		message, err := reader.ReadMessage(ctx)
		s.Require().NoError(err, "no new-task event arrived on the tasks topic")
		if string(message.Key) != "new-task" {
			continue
		}
		var payload struct {
			Task map[string]interface{} `json:"task"`
		}
		s.Require().NoError(json.Unmarshal(message.Value, &payload))
		if payload.Task["id"] == task["id"] {
			s.Equal("dropoff", payload.Task["type"])
			return
		}
	}
}
