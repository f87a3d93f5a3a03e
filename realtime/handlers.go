package realtime

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/snabb-tech/dispatch/core/apierror"
	"github.com/snabb-tech/dispatch/core/logger"
	"github.com/snabb-tech/dispatch/core/schema"
)

const (
	authSchemaID   = "websocket_auth.json"
	onDutySchemaID = "websocket_onduty.json"
)

// Builder is a builder for the realtime API.
type Builder struct {
	// Router is the mux router the endpoints get added to. Mandatory.
	Router *mux.Router
	// Hub authenticates and serves channel subscriptions. Mandatory.
	Hub *Hub
	// Validator validates webhook request bodies. Mandatory.
	Validator *schema.Validator
}

// API provides the websocket endpoints: channel subscription, subscription
// authentication and the presence webhook.
type API struct {
	hub       *Hub
	validator *schema.Validator
}

// MustNewAPI realizes the realtime API. It panics on invalid configuration.
func MustNewAPI(bb *Builder) *API {
	if bb.Router == nil {
		panic("builder lacks router")
	}
	if bb.Hub == nil {
		panic("builder lacks hub")
	}
	if bb.Validator == nil {
		panic("builder lacks validator")
	}
	a := &API{hub: bb.Hub, validator: bb.Validator}
	bb.Router.HandleFunc("/ws", bb.Hub.ServeWS).Methods(http.MethodGet)
	bb.Router.HandleFunc("/api/websockets/auth", a.authWithAuth).Methods(http.MethodPost)
	bb.Router.HandleFunc("/api/websockets/onduty", a.onDuty).Methods(http.MethodPost)
	return a
}

// The channel provider does not tell us which user opened the socket, and
// the on-duty roster below is not wired up yet, so every presence
// subscription still carries this placeholder identity.
var placeholderPresence = PresenceData{
	UserID:   "dispatch",
	UserInfo: map[string]string{"name": "dispatch"},
}

type authRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

func (a *API) authWithAuth(w http.ResponseWriter, r *http.Request) {
	var payload authRequest
	if !a.decodeBody(w, r, authSchemaID, &payload) {
		return
	}
	token, err := a.hub.Authenticate(payload.SocketID, payload.ChannelName, placeholderPresence)
	if err != nil {
		apierror.Render(w, r, err)
		return
	}
	if token == "" {
		apierror.Render(w, r, apierror.Unauthorized())
		return
	}
	writeJSON(w, r, map[string]string{"auth": token})
}

// PresenceEvent is one channel occupancy change reported by the provider.
type PresenceEvent struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
}

type onDutyRequest struct {
	TimeMs float64         `json:"time_ms"`
	Events []PresenceEvent `json:"events"`
}

func (a *API) onDuty(w http.ResponseWriter, r *http.Request) {
	var payload onDutyRequest
	if !a.decodeBody(w, r, onDutySchemaID, &payload) {
		return
	}
	// TODO: derive the worker from the event channel name, persist the
	// worker's on-duty state and rebroadcast the roster. The channel naming
	// scheme is not settled, until then the batch is only acknowledged by
	// echoing it.
	writeJSON(w, r, map[string]interface{}{
		"timeMs": payload.TimeMs,
		"events": payload.Events,
	})
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, schemaID string, payload interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierror.Render(w, r, err)
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	violations, err := a.validator.Validate(body, schemaID)
	if err != nil {
		apierror.Render(w, r, apierror.InvalidRequest("request body must be a JSON object"))
		return false
	}
	if len(violations) > 0 {
		apierror.Render(w, r, apierror.InvalidRequest(schema.ViolationMessage(violations)))
		return false
	}
	if err := json.Unmarshal(body, payload); err != nil {
		apierror.Render(w, r, apierror.InvalidRequest(err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		apierror.Render(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot write response")
	}
}
