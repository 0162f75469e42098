package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orro3790/shiftbid-backend/api/controllers"
	"github.com/orro3790/shiftbid-backend/api/middleware"
	"github.com/orro3790/shiftbid-backend/internal/assignments"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/internal/health"
	"github.com/orro3790/shiftbid-backend/internal/notifications"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

// NewRouter assembles the HTTP surface: liveness probes, a public ping, and
// the authenticated driver and manager APIs.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database controllers.Pinger,
	cache controllers.Pinger,
	biddingService bidding.Service,
	biddingRepo bidding.Repository,
	assignmentsService assignments.Service,
	assignmentsRepo assignments.Repository,
	healthService health.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, database, cache, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1", func(r chi.Router) {
			r.Get("/windows", controllers.ListOpenWindows(biddingRepo, logg))
			r.Post("/windows/{windowId}/bids", controllers.SubmitBid(biddingService, logg))

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", controllers.ListMyAssignments(assignmentsRepo, logg))
				r.Post("/{assignmentId}/confirm", controllers.ConfirmAssignment(assignmentsService, logg))
				r.Post("/{assignmentId}/arrive", controllers.ArriveAssignment(assignmentsService, logg))
				r.Post("/{assignmentId}/complete", controllers.CompleteAssignment(assignmentsService, logg))
				r.Post("/{assignmentId}/cancel", controllers.CancelAssignment(assignmentsService, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			})

			r.Route("/manager", func(r chi.Router) {
				r.Use(middleware.RequireRole("manager", logg))

				r.Get("/assignments", controllers.ListAssignmentsForDate(assignmentsRepo, logg))
				r.Post("/assignments/windows", controllers.OpenBidWindow(biddingService, logg))
				r.Post("/assignments/assign", controllers.ManagerAssign(biddingService, logg))
				r.Patch("/assignments/{assignmentId}/parcels", controllers.EditParcelCount(assignmentsService, logg))
				r.Post("/windows/{windowId}/resolve", controllers.ResolveWindow(biddingService, logg))
				r.Post("/drivers/{driverId}/reinstate", controllers.ReinstateDriver(healthService, logg))
			})
		})
	})

	return r
}
