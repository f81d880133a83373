// Package api exposes the FHIR service over HTTP with echo.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers the resource routes under /fhir and at the root, plus
// GET /health. mw applies to the resource routes only.
func Mount(e *echo.Echo, h *Handler, health echo.HandlerFunc, mw ...echo.MiddlewareFunc) {
	e.GET("/health", health)
	h.RegisterRoutes(e.Group("/fhir", mw...))
	h.RegisterRoutes(e.Group("", mw...))
}

// RegisterRoutes mounts the read and write interactions of every
// registered resource type on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	for _, rt := range h.svc.ResourceTypes() {
		rt := rt
		g.GET("/"+rt, func(c echo.Context) error { return h.Search(c, rt) })
		g.GET("/"+rt+"/:id", func(c echo.Context) error { return h.Read(c, rt) })
		g.POST("/"+rt, func(c echo.Context) error { return h.Create(c, rt) })
		g.PUT("/"+rt+"/:id", func(c echo.Context) error { return h.Update(c, rt) })
		g.DELETE("/"+rt+"/:id", func(c echo.Context) error { return h.Delete(c, rt) })
	}
}

func (h *Handler) Search(c echo.Context, resourceType string) error {
	params := fhir.SearchParams(c.QueryParams())
	return respond(c, h.svc.Search(c.Request().Context(), resourceType, params))
}

func (h *Handler) Read(c echo.Context, resourceType string) error {
	return respond(c, h.svc.Get(c.Request().Context(), resourceType, c.Param("id")))
}

func (h *Handler) Create(c echo.Context, resourceType string) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}
	return respond(c, h.svc.Create(c.Request().Context(), resourceType, body))
}

func (h *Handler) Update(c echo.Context, resourceType string) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}
	return respond(c, h.svc.Update(c.Request().Context(), resourceType, c.Param("id"), body))
}

func (h *Handler) Delete(c echo.Context, resourceType string) error {
	return respond(c, h.svc.Delete(c.Request().Context(), resourceType, c.Param("id")))
}

func respond(c echo.Context, resp service.Response) error {
	return writeFHIR(c, resp.Status, resp.Body)
}

func writeFHIR(c echo.Context, status int, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.Blob(status, fhir.MIMEFHIRJSON, data)
}
