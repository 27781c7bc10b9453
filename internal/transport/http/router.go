package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/handlers"
	"github.com/marcelprats/TFM/internal/handlers/cart"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	BotigaHandler  *handlers.BotigaHandler
	OrderHandler   *handlers.OrderHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *cart.CartHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	api.POST("/register", d.AuthHandler.Register)
	api.POST("/register-vendor", d.AuthHandler.RegisterVendor)
	api.POST("/login", d.AuthHandler.Login)
	api.POST("/logout", d.AuthHandler.LogOut)
	api.GET("/user", d.AuthHandler.Me)

	api.GET("/search", d.SearchHandler.Search)

	api.GET("/botigues", d.BotigaHandler.GetBotigues)
	api.GET("/botigues/:id", d.BotigaHandler.GetBotiga)
	api.POST("/botigues", d.BotigaHandler.CreateBotiga)
	api.PUT("/botigues/:id", d.BotigaHandler.UpdateBotiga)
	api.DELETE("/botigues/:id", d.BotigaHandler.DeleteBotiga)

	api.GET("/productes", d.ProductHandler.GetProducts)
	api.GET("/productes/:id", d.ProductHandler.GetProduct)
	api.POST("/productes", d.ProductHandler.CreateProduct)
	api.PUT("/productes/:id", d.ProductHandler.UpdateProduct)
	api.DELETE("/productes/:id", d.ProductHandler.DeleteProduct)

	api.GET("/cart", d.CartHandler.GetCart)
	api.POST("/cart", d.CartHandler.AddItem)
	api.PUT("/cart/check-stock", d.CartHandler.CheckStock)
	api.POST("/cart/checkout", d.CartHandler.Checkout)
	api.PUT("/cart/:itemId", d.CartHandler.UpdateItem)
	api.DELETE("/cart/:itemId", d.CartHandler.RemoveItem)
	api.DELETE("/cart", d.CartHandler.ClearCart)

	api.GET("/orders", d.OrderHandler.List)
	api.GET("/orders/:id", d.OrderHandler.Show)
	api.PATCH("/orders/:id", d.OrderHandler.Update)
	api.DELETE("/orders/:id", d.OrderHandler.Delete)
	api.GET("/vendor/orders", d.OrderHandler.VendorOrders)
}
