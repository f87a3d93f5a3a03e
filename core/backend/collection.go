package backend

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/snabb-tech/dispatch/core"
	"github.com/snabb-tech/dispatch/core/apierror"
	"github.com/snabb-tech/dispatch/core/logger"
	"github.com/snabb-tech/dispatch/core/schema"
)

// listing defaults, a caller can raise or lower both via query parameters
const (
	defaultListLimit = 50
	defaultListSkip  = 0
)

type contextKeyInstanceType struct{}

var contextKeyInstance = &contextKeyInstanceType{}

// instanceFromContext returns the instance resolved by the loader
// middleware.
func instanceFromContext(ctx context.Context) Instance {
	instance, _ := ctx.Value(contextKeyInstance).(Instance)
	return instance
}

func (b *Backend) createCollectionResource(router *mux.Router, rc collectionConfiguration) {
	resource := rc.Resource
	store := b.stores[resource]
	whitelist := rc.mutableFields()

	nillog := logger.Default()
	nillog.Debugln("create collection:", resource)
	if rc.Description != "" {
		nillog.Debugln("  description:", rc.Description)
	}
	if rc.SchemaID != "" && (b.validator == nil || !b.validator.HasSchema(rc.SchemaID)) {
		nillog.Errorf("invalid configuration for resource %s, schemaID %s is unknown. Validation is deactivated for this resource",
			resource, rc.SchemaID)
	}

	listRoute := "/api/" + core.Plural(resource)
	itemRoute := listRoute + "/{" + resource + "_id}"

	nillog.Debugln("  handle collection routes:", listRoute, "GET,POST")
	nillog.Debugln("  handle collection routes:", itemRoute, "GET,PUT,DELETE")

	list := func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		skip := defaultListSkip
		var violations []string
		urlQuery := r.URL.Query()
		if value := urlQuery.Get("limit"); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				violations = append(violations, "limit must be a positive number")
			} else {
				limit = n
			}
		}
		if value := urlQuery.Get("skip"); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				violations = append(violations, "skip must be a non-negative number")
			} else {
				skip = n
			}
		}
		if len(violations) > 0 {
			apierror.Render(w, r, apierror.InvalidRequest(schema.ViolationMessage(violations)))
			return
		}

		instances, err := store.List(r.Context(), limit, skip)
		if err != nil {
			apierror.Render(w, r, err)
			return
		}
		writeJSON(w, r, instances)
	}

	create := func(w http.ResponseWriter, r *http.Request) {
		fields, err := b.validateBody(r, rc, whitelist)
		if err != nil {
			apierror.Render(w, r, err)
			return
		}
		instance, err := store.Create(r.Context(), fields)
		if err != nil {
			apierror.Render(w, r, err)
			return
		}
		b.notify(rc, core.OperationCreate, instance)
		writeJSON(w, r, instance)
	}

	getOne := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, instanceFromContext(r.Context()))
	}

	update := func(w http.ResponseWriter, r *http.Request) {
		fields, err := b.validateBody(r, rc, whitelist)
		if err != nil {
			apierror.Render(w, r, err)
			return
		}
		instance := instanceFromContext(r.Context())
		updated, err := store.Update(r.Context(), instance.ID(), fields)
		if err != nil {
			apierror.Render(w, r, err)
			return
		}
		b.notify(rc, core.OperationUpdate, updated)
		writeJSON(w, r, updated)
	}

	remove := func(w http.ResponseWriter, r *http.Request) {
		instance := instanceFromContext(r.Context())
		if err := store.Remove(r.Context(), instance.ID()); err != nil {
			apierror.Render(w, r, err)
			return
		}
		b.notify(rc, core.OperationDelete, instance)
		// the delete response is the literal text OK, not JSON
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("OK"))
	}

	collection := router.Path(listRoute).Subrouter()
	collection.Methods(http.MethodGet).HandlerFunc(list)
	collection.Methods(http.MethodPost).HandlerFunc(create)

	item := router.Path(itemRoute).Subrouter()
	item.Use(b.loader(resource, store))
	item.Methods(http.MethodGet).HandlerFunc(getOne)
	item.Methods(http.MethodPut).HandlerFunc(update)
	item.Methods(http.MethodDelete).HandlerFunc(remove)
}

// loader resolves the id path segment into an instance before any item
// handler runs. On failure it renders the error and short-circuits, no
// handler body executes.
func (b *Backend) loader(resource string, store Store) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := mux.Vars(r)[resource+"_id"]
			instance, err := store.Get(r.Context(), id)
			if err != nil {
				apierror.Render(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyInstance, instance)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateBody validates the request body for rc and reduces it to the
// whitelisted mutable fields. All violated constraints are reported
// together in one message.
func (b *Backend) validateBody(r *http.Request, rc collectionConfiguration, whitelist []string) (Instance, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	if rc.SchemaID != "" && b.validator != nil && b.validator.HasSchema(rc.SchemaID) {
		violations, err := b.validator.Validate(body, rc.SchemaID)
		if err != nil {
			return nil, apierror.InvalidRequest("request body must be a JSON object")
		}
		if len(violations) > 0 {
			return nil, apierror.InvalidRequest(schema.ViolationMessage(violations))
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apierror.InvalidRequest("request body must be a JSON object")
	}

	fields := Instance{}
	for _, key := range whitelist {
		if value, ok := payload[key]; ok {
			fields[key] = value
		}
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot encode response")
	}
}
