// Package items serves the canvas item REST API. Every handler is scoped to
// the user resolved by middleware.RequireUser.
package items

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"orbit/core"
	"orbit/middleware"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxBodyBytes    = 16 << 20
)

// Routes mounts the item API on r.
func Routes(r chi.Router, store core.ItemStore) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Route("/elements", func(r chi.Router) {
			r.Get("/", HandleList(store))
			r.Post("/", HandleCreate(store, ""))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGet(store))
				r.Put("/", HandleUpdate(store))
				r.Delete("/", HandleDelete(store))
			})
		})
		for _, kind := range core.Kinds {
			r.Post("/"+kind.Collection()+"/", HandleCreate(store, kind))
		}
		r.Get("/search", HandleSearch(store))
	})
}

func detail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": msg})
}

// storeError maps store failures onto HTTP statuses.
func storeError(w http.ResponseWriter, r *http.Request, err error, log *logrus.Entry, action string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.WithError(err).Warn("Element not found")
		detail(w, r, http.StatusNotFound, "Element not found")
	case errors.Is(err, core.ErrInvalidItem):
		log.WithError(err).Warn("Rejected element")
		detail(w, r, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Errorf("Failed to %s", action)
		detail(w, r, http.StatusInternalServerError, "Failed to "+action)
	}
}

// checkBody validates body against schema. It writes the error response
// itself and returns false on failure.
func checkBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, body []byte) bool {
	errs, err := validate(schema, body)
	if err != nil {
		detail(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return false
	}
	if len(errs) > 0 {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]any{"detail": errs})
		return false
	}
	return true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

func toJSON(items []*core.Item) []*core.Item {
	if items == nil {
		return []*core.Item{}
	}
	return items
}

func HandleList(store core.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		page, err := intParam(r, "page", 1)
		if err != nil {
			detail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		pageSize, err := intParam(r, "page_size", DefaultPageSize)
		if err != nil {
			detail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		pageSize = min(pageSize, MaxPageSize)
		if _, ok := core.PageOffset(page, pageSize); !ok {
			render.JSON(w, r, []*core.Item{})
			return
		}

		items, err := store.List(r.Context(), userID, page, pageSize)
		if err != nil {
			storeError(w, r, err, logrus.WithFields(logrus.Fields{"userID": userID, "page": page}), "list elements")
			return
		}
		render.JSON(w, r, toJSON(items))
	}
}

// HandleCreate stores a new item. With an empty kind the body's "type"
// decides; otherwise a body type must agree with the route.
func HandleCreate(store core.ItemStore, kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			detail(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if !checkBody(w, r, createSchema, body) {
			return
		}

		var it core.Item
		if err := json.Unmarshal(body, &it); err != nil {
			detail(w, r, http.StatusBadRequest, "Request body must be a JSON object")
			return
		}
		switch {
		case kind == "" && it.Kind == "":
			detail(w, r, http.StatusBadRequest, "type is required")
			return
		case kind != "" && it.Kind != "" && it.Kind != kind:
			detail(w, r, http.StatusBadRequest, "type does not match endpoint")
			return
		case kind != "":
			it.Kind = kind
		}
		it.ID = ""
		it.UserID = userID

		log := logrus.WithFields(logrus.Fields{"userID": userID, "kind": it.Kind})
		if err := store.Create(r.Context(), &it); err != nil {
			storeError(w, r, err, log, "create element")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, &it)
	}
}

func HandleGet(store core.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id := chi.URLParam(r, "id")

		it, err := store.Get(r.Context(), userID, id)
		if err != nil {
			storeError(w, r, err, logrus.WithFields(logrus.Fields{"userID": userID, "id": id}), "get element")
			return
		}
		render.JSON(w, r, it)
	}
}

// HandleUpdate applies a partial update. Coordinates must be integers and
// the type of an element never changes.
func HandleUpdate(store core.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{"userID": userID, "id": id})

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			detail(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if !checkBody(w, r, updateSchema, body) {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			detail(w, r, http.StatusBadRequest, "Request body must be a JSON object")
			return
		}

		current, err := store.Get(r.Context(), userID, id)
		if err != nil {
			storeError(w, r, err, log, "update element")
			return
		}
		if t, ok := raw["type"].(string); ok && core.Kind(t) != current.Kind {
			detail(w, r, http.StatusBadRequest, "type cannot be changed")
			return
		}

		patch := core.Patch{Fields: core.Fields{}}
		for key, v := range raw {
			switch key {
			case "x", "y":
				f, _ := v.(float64)
				n := int(math.Round(f))
				if key == "x" {
					patch.X = &n
				} else {
					patch.Y = &n
				}
			default:
				if !core.IsReserved(key) {
					patch.Fields[key] = v
				}
			}
		}

		updated, err := store.Update(r.Context(), userID, id, patch)
		if err != nil {
			storeError(w, r, err, log, "update element")
			return
		}
		log.Debug("Element updated")
		render.JSON(w, r, updated)
	}
}

func HandleDelete(store core.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), userID, id); err != nil {
			storeError(w, r, err, logrus.WithFields(logrus.Fields{"userID": userID, "id": id}), "delete element")
			return
		}
		detail(w, r, http.StatusOK, "Element deleted successfully")
	}
}

func HandleSearch(store core.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			render.JSON(w, r, []*core.Item{})
			return
		}

		items, err := store.Search(r.Context(), userID, query)
		if err != nil {
			storeError(w, r, err, logrus.WithFields(logrus.Fields{"userID": userID, "query": query}), "search elements")
			return
		}
		render.JSON(w, r, toJSON(items))
	}
}
