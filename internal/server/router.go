// Package server assembles the HTTP routes of the API.
package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/configs"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/cart"
	"github.com/Keoroanthony/shopnow-api/internal/handlers"
	"github.com/Keoroanthony/shopnow-api/internal/middleware"
	"github.com/Keoroanthony/shopnow-api/internal/stats"
)

type Deps struct {
	Session config.SessionConfig
	Log     *zap.Logger
	Carts   *cart.Service
	Reports *stats.Reporter
	Effects *handlers.Effects
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(d.Log), middleware.Recovery(d.Log))

	// ── session store ──
	store := cookie.NewStore([]byte(d.Session.Secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions(d.Session.Name, store))

	orderH := handlers.NewOrderHandler(d.Effects)
	cartH := handlers.NewCartHandler(d.Carts, d.Effects)
	statsH := handlers.NewStatsHandler(d.Reports)

	// ── public endpoints ──
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/auth/login", auth.Login)
	r.GET("/auth/callback", auth.Callback)
	r.POST("/auth/logout", auth.Logout)

	public := r.Group("/api")
	{
		public.GET("/categories", handlers.ListCategories)
		public.GET("/categories/:id", handlers.GetCategory)
		public.GET("/products", handlers.ListProducts)
		public.GET("/products/average", handlers.GetAveragePrice)
		public.GET("/products/:id", handlers.GetProduct)
		public.GET("/products/:id/reviews", handlers.ListReviews)
		public.GET("/shops", handlers.ListShops)
		public.GET("/shops/:id", handlers.GetShop)
	}

	// ── protected API ──
	api := r.Group("/api")
	api.Use(auth.RequireAuth())
	{
		api.GET("/users/me", handlers.Me)

		api.POST("/products", handlers.CreateProduct)
		api.PATCH("/products/:id", handlers.UpdateProduct)
		api.DELETE("/products/:id", handlers.DeleteProduct)
		api.POST("/products/:id/reviews", handlers.CreateReview)
		api.PATCH("/reviews/:id", handlers.UpdateReview)
		api.DELETE("/reviews/:id", handlers.DeleteReview)

		api.POST("/shops", handlers.CreateShop)
		api.PATCH("/shops/:id", handlers.UpdateShop)
		api.DELETE("/shops/:id", handlers.DeleteShop)
		api.GET("/shops/:id/stats", statsH.Shop)

		api.GET("/cart", cartH.Get)
		api.DELETE("/cart", cartH.Clear)
		api.GET("/cart/totals", cartH.Totals)
		api.POST("/cart/items", cartH.AddItem)
		api.PATCH("/cart/items/:id", cartH.UpdateItem)
		api.DELETE("/cart/items/:id", cartH.RemoveItem)
		api.POST("/cart/checkout", cartH.Checkout)

		api.GET("/wishlist", handlers.ListWishlist)
		api.POST("/wishlist", handlers.AddToWishlist)
		api.DELETE("/wishlist", handlers.ClearWishlist)
		api.DELETE("/wishlist/:product_id", handlers.RemoveFromWishlist)
		api.GET("/wishlist/check/:product_id", handlers.CheckWishlist)

		orders := api.Group("/orders")
		orders.GET("/", orderH.List)
		orders.POST("/", orderH.Create)
		orders.GET("/admin/", orderH.AdminList)
		orders.PATCH("/admin/", orderH.AdminUpdate)
		orders.PATCH("/credit/decision/", orderH.CreditDecision)
		orders.GET("/shop-owner/", orderH.ShopOwnerList)
		orders.GET("/credits/mine/", orderH.MyCredits)
		orders.GET("/credits/stats/", orderH.CreditStats)
		orders.GET("/credits/by-user/", orderH.CreditsByUser)
		orders.GET("/:id/", orderH.Get)
		orders.PATCH("/:id/", orderH.Cancel)

		staff := api.Group("")
		staff.Use(auth.RequireStaff())
		staff.POST("/categories", handlers.CreateCategory)
		staff.GET("/users", handlers.ListUsers)
		staff.PATCH("/users/:id/role", handlers.SetUserRole)
		staff.POST("/shops/:id/toggle-active", handlers.ToggleShopActive)
		staff.GET("/admin/stats", statsH.Admin)
	}

	return r
}
