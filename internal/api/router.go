package api

import (
	"log/slog"
	"nemt-trip-service/internal/api/handlers"
	"nemt-trip-service/internal/ports"
	"nemt-trip-service/internal/services"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// Handlers stay unaware of concrete adapters.
func NewRouter(
	logger *slog.Logger,
	lifecycle *services.TripLifecycle,
	tracker *services.ExecutionTracker,
	evaluator *services.ConstraintEvaluator,
	ledger ports.ReconciliationReader,
) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(handlers.NotFound)
	router.MethodNotAllowed = http.HandlerFunc(handlers.MethodNotAllowed)

	trips := &handlers.TripHandler{Lifecycle: lifecycle, Evaluator: evaluator}
	execs := &handlers.ExecutionHandler{Tracker: tracker, Trips: lifecycle.Trips, Ledger: ledger}

	router.HandlerFunc(http.MethodGet, "/health", handlers.Health)

	router.HandlerFunc(http.MethodGet, "/trips", trips.List)
	router.HandlerFunc(http.MethodPost, "/trips", trips.Create)
	router.HandlerFunc(http.MethodGet, "/trips/:id", trips.Get)
	router.HandlerFunc(http.MethodPost, "/trips/:id/approve", trips.Approve)
	router.HandlerFunc(http.MethodPost, "/trips/:id/reject", trips.Reject)
	router.HandlerFunc(http.MethodPost, "/trips/:id/schedule", trips.Schedule)
	router.HandlerFunc(http.MethodPost, "/trips/:id/cancel", trips.Cancel)
	router.HandlerFunc(http.MethodPut, "/trips/:id/stops", trips.ReplaceStops)
	router.HandlerFunc(http.MethodPost, "/trips/:id/evaluations", trips.Evaluate)
	router.HandlerFunc(http.MethodPost, "/trips/:id/proposals", trips.Propose)
	router.HandlerFunc(http.MethodPut, "/trips/:id/planned-route", trips.AttachPlannedRoute)

	router.HandlerFunc(http.MethodPost, "/trips/:id/execution", execs.Start)
	router.HandlerFunc(http.MethodGet, "/trips/:id/execution", execs.Get)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/status", execs.Advance)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/arrivals", execs.RecordArrival)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/reconciliations", execs.Record)
	router.HandlerFunc(http.MethodGet, "/trips/:id/execution/reconciliations", execs.ListLedger)
	router.HandlerFunc(http.MethodGet, "/trips/:id/execution/billable", execs.ListBillable)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/amendments", execs.Amend)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/complete", execs.Complete)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/fail", execs.Fail)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/incidents", execs.ReportIncident)
	router.HandlerFunc(http.MethodPost, "/trips/:id/execution/incidents/:incident/resolve", execs.ResolveIncident)
	router.HandlerFunc(http.MethodPut, "/trips/:id/execution/approach-route", execs.UpdateApproachRoute)
	router.HandlerFunc(http.MethodPut, "/trips/:id/execution/live-route", execs.UpdateLiveRoute)

	return requestMiddleware(logger, loggingMiddleware(compressionMiddleware(router)))
}
