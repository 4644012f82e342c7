package api

import (
	"net/http"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	approvalHandler := domain.Approvals.Handler(domain.Applier)
	connectionHandler := domain.Connections.Handler()

	routes.Register(
		mux,
		connectionHandler.Routes(),
		connectionHandler.DebugRoutes(),
		domain.Registry.Handler().Routes(),
		domain.Drift.Handler().Routes(),
		domain.Scoring.Handler().Routes(),
		approvalHandler.Routes(),
		approvalHandler.RepairRoutes(),
		domain.Materializer.Handler().Routes(),
	)
}
