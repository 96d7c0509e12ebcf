// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/handlers"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
)

// Options carries the route table's collaborators.
type Options struct {
	Deps *handlers.Deps

	// Extensions supplies the auth provider and authorizer. Defaults are
	// applied.
	Extensions extensions.ServiceOptions

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// Limiter throttles mutations. Nil disables throttling.
	Limiter *middleware.RateLimiter
}

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, opts Options) {
	d := opts.Deps
	ext := opts.Extensions.WithDefaults()

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.HandleMethodNotAllowed = true
	router.NoMethod(handlers.MethodNotAllowed)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(middleware.Session(ext.AuthProvider, d.Logger))
	if opts.Limiter != nil {
		api.Use(opts.Limiter.Middleware())
	}

	admin := func(resource string) gin.HandlerFunc {
		return middleware.RequireAdmin(ext.AuthzProvider, resource)
	}

	{
		api.GET("/sections-with-cards", handlers.SectionsWithCards(d))
		api.GET("/dashboard/:id/full", handlers.DashboardFull(d))
		api.GET("/icons", handlers.ListIcons(d))

		api.GET("/sections", handlers.ListSections(d))
		api.POST("/sections", admin("section"), handlers.CreateSection(d))
		api.PUT("/sections", admin("section"), handlers.UpdateSection(d))
		api.DELETE("/sections", admin("section"), handlers.DeleteSection(d))

		api.GET("/cards", handlers.ListCards(d))
		api.POST("/cards", admin("card"), handlers.CreateCard(d))
		api.PUT("/cards", admin("card"), handlers.UpdateCardByBody(d))
		api.DELETE("/cards", admin("card"), handlers.DeleteCardByBody(d))
		api.GET("/cards/:id", handlers.GetCard(d))
		api.PUT("/cards/:id", admin("card"), handlers.UpdateCard(d))
		api.DELETE("/cards/:id", admin("card"), handlers.DeleteCard(d))

		api.GET("/code-snippets", handlers.ListSnippets(d))
		api.POST("/code-snippets", admin("code_snippet"), handlers.CreateSnippet(d))
		api.PUT("/code-snippets/:id", admin("code_snippet"), handlers.UpdateSnippet(d))
		api.DELETE("/code-snippets/:id", admin("code_snippet"), handlers.DeleteSnippet(d))

		api.GET("/urls", handlers.ListLinks(d))
		api.POST("/urls", admin("url"), handlers.CreateLink(d))
		api.GET("/urls/:id", handlers.GetLink(d))
		api.PUT("/urls/:id", admin("url"), handlers.UpdateLink(d))
		api.DELETE("/urls/:id", admin("url"), handlers.DeleteLink(d))
	}

	authGroup := api.Group("/auth")
	{
		authGroup.GET("/login", handlers.Login(d))
		authGroup.GET("/callback", handlers.Callback(d))
		authGroup.POST("/logout", handlers.Logout(d))
		authGroup.GET("/user", handlers.CurrentUser(d))
	}

	users := api.Group("/admin/users", middleware.RequireRole(extensions.RoleAdmin), admin("user"))
	{
		users.GET("", handlers.ListUsers(d))
		users.PATCH("", handlers.UpdateUser(d))
		users.DELETE("", handlers.DeleteUser(d))
	}
}
