package backend

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/snabb-tech/dispatch/core"
	"github.com/snabb-tech/dispatch/core/csql"
	"github.com/snabb-tech/dispatch/core/logger"
	"github.com/snabb-tech/dispatch/core/schema"
)

// Backend is the generic rest backend
type Backend struct {
	config    Configuration
	db        *csql.DB
	router    *mux.Router
	notifier  core.Notifier
	validator *schema.Validator
	stores    map[string]Store
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all resource kinds. This is mandatory.
	Config string
	// DB is a postgres database. This is optional; without a database all
	// kinds are held in process memory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives the configured domain events, fire-and-forget.
	// This is optional.
	Notifier core.Notifier
	// Validator validates request bodies against the schema_id of each
	// kind. This is optional; kinds without a known schema skip validation.
	Validator *schema.Validator
}

// New realizes the actual backend. It creates the store relations (if they
// do not exist) and adds the actual routes to the router.
func New(bb *Builder) (*Backend, error) {

	var config Configuration
	err := json.Unmarshal([]byte(bb.Config), &config)
	if err != nil {
		return nil, fmt.Errorf("parse error in backend configuration: %w", err)
	}

	if bb.Router == nil {
		return nil, fmt.Errorf("router is missing")
	}

	b := &Backend{
		config:    config,
		db:        bb.DB,
		router:    bb.Router,
		notifier:  bb.Notifier,
		validator: bb.Validator,
		stores:    make(map[string]Store),
	}

	for _, rc := range config.Collections {
		if rc.Resource == "" {
			return nil, fmt.Errorf("collection without resource name in backend configuration")
		}
		if _, ok := b.stores[rc.Resource]; ok {
			return nil, fmt.Errorf("duplicate resource %s in backend configuration", rc.Resource)
		}
		if b.db != nil {
			store, err := newSQLStore(b.db, rc)
			if err != nil {
				return nil, err
			}
			b.stores[rc.Resource] = store
		} else {
			b.stores[rc.Resource] = newMemStore(rc)
		}
	}

	logger.AddRequestID(b.router)
	b.handleCORS()
	b.handleCompression()
	b.handleRoutes(b.router)
	return b, nil
}

// MustNew is like New, but panics on error
func MustNew(bb *Builder) *Backend {
	b, err := New(bb)
	if err != nil {
		panic(err)
	}
	return b
}

// Store returns the store for the given resource kind, or nil if the kind
// is not configured.
func (b *Backend) Store(resource string) Store {
	return b.stores[resource]
}

// handleRoutes adds all necessary handlers for the specified configuration
func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.Default()
	nillog.Debugln("backend: handle routes")

	router.HandleFunc("/api/health-check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	for _, rc := range b.config.Collections {
		b.createCollectionResource(router, rc)
	}
}
