package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/workspace"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Registry           *workspace.Registry
	Catalog            *catalog.Catalog
	Log                *logger.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	CookieSecure       bool
	CookieMaxAge       time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	authHandler := NewAuthHandler(cfg.Log)
	cartHandler := NewCartHandler(cfg.Catalog, cfg.Log)
	checkoutHandler := NewCheckoutHandler(cfg.Log)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.Log)
	profileHandler := NewProfileHandler(cfg.Log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(metrics.InstrumentHandler)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog reads are shared by every visitor and need no workspace.
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogHandler.ListProducts)
			r.Get("/recent", catalogHandler.RecentProducts)
			r.Get("/featured", catalogHandler.FeaturedProducts)
			r.Get("/{productID}", catalogHandler.GetProduct)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", catalogHandler.ListCategories)
			r.Get("/{slug}", catalogHandler.GetCategory)
		})
		r.Get("/search", catalogHandler.Search)

		r.Group(func(r chi.Router) {
			r.Use(WorkspaceMiddleware(cfg.Registry, cfg.CookieSecure, cfg.CookieMaxAge))

			r.Get("/session", authHandler.GetSession)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/logout", authHandler.Logout)

			r.Route("/signup", func(r chi.Router) {
				r.Get("/", authHandler.GetSignup)
				r.With(OtpRateLimit).Post("/", authHandler.Signup)
				r.Post("/verify", authHandler.VerifySignup)
				r.With(OtpRateLimit).Post("/resend", authHandler.ResendSignupCode)
				r.Delete("/otp", authHandler.CloseSignupCode)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productID}", cartHandler.UpdateQuantity)
				r.Delete("/items/{productID}", cartHandler.RemoveItem)
				r.Get("/sheet", cartHandler.GetSheet)
				r.Put("/sheet", cartHandler.SetSheet)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.StartCheckout)
				r.Get("/", checkoutHandler.GetCheckout)
				r.Put("/draft", checkoutHandler.UpdateDraft)
				r.Post("/addresses/new", checkoutHandler.NewAddress)
				r.Post("/addresses/{addressID}", checkoutHandler.SelectAddress)
				r.Put("/save-address", checkoutHandler.SetSaveAddress)
				r.With(OtpRateLimit).Post("/proceed", checkoutHandler.Proceed)
				r.Post("/otp", checkoutHandler.SubmitCode)
				r.With(OtpRateLimit).Post("/otp/resend", checkoutHandler.ResendCode)
				r.Delete("/otp", checkoutHandler.CloseCode)
			})

			r.Route("/profile/addresses", func(r chi.Router) {
				r.Get("/", profileHandler.ListAddresses)
				r.Post("/", profileHandler.AddAddress)
				r.Put("/{addressID}", profileHandler.UpdateAddress)
				r.Delete("/{addressID}", profileHandler.DeleteAddress)
			})

			r.Get("/orders", profileHandler.ListOrders)
			r.Get("/orders/{orderID}", profileHandler.GetOrder)
		})
	})

	return r
}
