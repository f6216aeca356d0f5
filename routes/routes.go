package routes

import (
	"net/http"

	"yardtrack/handlers"
	"yardtrack/middleware"
	"yardtrack/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CORS middleware
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace * with your domain in production
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type Handlers struct {
	Users       *handlers.UserHandler
	Trucks      *handlers.TruckHandler
	Processing  *handlers.ProcessingHandler
	Weighbridge *handlers.WeighbridgeHandler
	Approvals   *handlers.ApprovalHandler
	Settings    *handlers.SettingsHandler
}

func New(h Handlers, jwtm *middleware.JWTManager, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(handlers.RecoverWrapper(log))
	r.Use(withCORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// User routes
	r.Post("/signup", h.Users.Signup)
	r.Post("/login", h.Users.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtm))

		r.Route("/trucks", func(r chi.Router) {
			r.Get("/", h.Trucks.ListTrucks)
			r.Post("/", h.Trucks.CreateTruck)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Trucks.GetTruck)
				r.Delete("/", h.Trucks.DeleteTruck)
				r.Post("/gate", h.Trucks.MoveToGate)
				r.Post("/upcoming", h.Trucks.MoveBackToUpcoming)
				r.Post("/entry", h.Trucks.DecideEntry)
				r.Post("/channel", h.Trucks.SetChannel)

				r.Route("/processing", func(r chi.Router) {
					r.Post("/start", h.Processing.Start)
					r.Put("/draft", h.Processing.SaveDraft)
					r.Post("/advance", h.Processing.Advance)
					r.Post("/back", h.Processing.Back)
					r.Post("/document-approval", h.Processing.RequestDocumentApproval)
					r.Post("/safety-approval", h.Processing.RequestSafetyApproval)
					r.Post("/uploads", h.Processing.Upload)
					r.Post("/complete", h.Processing.Complete)
				})

				r.Post("/dispatch-weighbridge", h.Trucks.DispatchToWeighbridge)
				r.Route("/weighbridge", func(r chi.Router) {
					r.Get("/", h.Weighbridge.Get)
					r.Post("/weights", h.Weighbridge.RecordWeight)
					r.Post("/complete", h.Weighbridge.Complete)
					r.Get("/slip", h.Weighbridge.Slip)
				})

				r.Post("/dock", h.Trucks.AssignDock)
				r.Post("/unloading/start", h.Trucks.StartUnloading)
				r.Post("/unloading/complete", h.Trucks.CompleteUnloading)
				r.Post("/exit", h.Trucks.Exit)
				r.Post("/equipment", h.Trucks.IssueEquipment)
				r.Get("/tat", h.Trucks.TAT)
			})
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.Approvals.List)
			r.Get("/{id}", h.Approvals.Get)
			r.With(middleware.RequireRole(models.RoleAdmin)).Post("/{id}/decision", h.Approvals.Decide)
		})

		r.Route("/settings", func(r chi.Router) {
			admin := middleware.RequireRole(models.RoleAdmin)

			r.Get("/weighbridge", h.Settings.GetWeighbridge)
			r.With(admin).Put("/weighbridge", h.Settings.PutWeighbridge)
			r.Get("/tat", h.Settings.GetTAT)
			r.With(admin).Put("/tat", h.Settings.PutTAT)
			r.Get("/safety-equipment", h.Settings.GetSafetyEquipment)
			r.With(admin).Put("/safety-equipment", h.Settings.PutSafetyEquipment)
			r.Get("/transporters", h.Settings.GetTransporters)
			r.With(admin).Put("/transporters", h.Settings.PutTransporters)

			r.Get("/docks", h.Settings.GetDocks)
			r.With(admin).Post("/docks", h.Settings.AddDock)
			r.With(admin).Put("/docks/{id}", h.Settings.UpdateDock)
			r.With(admin).Delete("/docks/{id}", h.Settings.RemoveDock)
			r.Get("/destinations", h.Settings.Destinations)
		})
	})

	return r
}
