// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/middleware"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) (*module.Module, error) {
	mux := http.NewServeMux()
	registerRoutes(mux, domain)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
