package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicura/medicura-backend/api/controllers"
	"github.com/medicura/medicura-backend/api/middleware"
	apptsvc "github.com/medicura/medicura-backend/internal/appointments"
	authsvc "github.com/medicura/medicura-backend/internal/auth"
	cartsvc "github.com/medicura/medicura-backend/internal/cart"
	checkoutsvc "github.com/medicura/medicura-backend/internal/checkout"
	doctorsrepo "github.com/medicura/medicura-backend/internal/doctors"
	orderssvc "github.com/medicura/medicura-backend/internal/orders"
	paymentssvc "github.com/medicura/medicura-backend/internal/payments"
	"github.com/medicura/medicura-backend/pkg/config"
	"github.com/medicura/medicura-backend/pkg/enums"
	"github.com/medicura/medicura-backend/pkg/logger"
)

// Deps bundles everything the router mounts. cmd/api builds one of these
// after wiring the services.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DBPinger     controllers.Pinger
	RedisPinger  controllers.Pinger
	Registry     *prometheus.Registry
	Auth         authsvc.Service
	Cart         cartsvc.Service
	Checkout     checkoutsvc.Service
	Orders       orderssvc.Service
	Payments     paymentssvc.Service
	Appointments apptsvc.Service
	Doctors      doctorsrepo.Repository
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Frontend.BaseURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DBPinger, d.RedisPinger))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(d.Auth, logg))
	})

	// Gateway callbacks carry no bearer token; the transaction id plus
	// server-side re-validation is the authentication.
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/success", controllers.PaymentSuccessCallback(d.Payments, cfg.Frontend, logg))
		r.Post("/fail", controllers.PaymentFailCallback(d.Payments, cfg.Frontend, logg))
		r.Post("/cancel", controllers.PaymentCancelCallback(d.Payments, cfg.Frontend, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(string(enums.UserRolePatient), logg))
			r.Post("/initiate", controllers.PaymentInitiate(d.Payments, logg))
			r.Get("/", controllers.PaymentHistory(d.Payments, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/doctors", controllers.DoctorList(d.Doctors, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRolePatient), logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(d.Cart, logg))
				r.Post("/items", controllers.CartAddItem(d.Cart, logg))
				r.Delete("/items/{lineId}", controllers.CartRemoveLine(d.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.Checkout(d.Checkout, logg))
				r.Get("/", controllers.OrderHistory(d.Orders, logg))
			})

			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", controllers.AppointmentList(d.Appointments, logg))
				r.Post("/", controllers.AppointmentBook(d.Appointments, logg))
				r.Put("/{appointmentId}", controllers.AppointmentReschedule(d.Appointments, logg))
				r.Delete("/{appointmentId}", controllers.AppointmentCancel(d.Appointments, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleDoctor), logg))
			r.Post("/appointments/{appointmentId}/complete", controllers.AppointmentComplete(d.Appointments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(d.Orders, logg))
			r.Patch("/{orderId}", controllers.AdminOrderDecision(d.Orders, logg))
		})
	})

	return r
}
