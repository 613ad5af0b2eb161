package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/servicecrm/backend/api/handler"
)

type Handlers struct {
	Customer *apiHandler.CustomerHandler
	Product  *apiHandler.ProductHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Customer routes
	r.GET("/api/v1/customers", handlers.Customer.ListCustomers)
	r.GET("/api/v1/customers/scroll", handlers.Customer.ScrollCustomers)
	r.POST("/api/v1/customers", handlers.Customer.CreateCustomer)
	r.GET("/api/v1/customers/{id}", handlers.Customer.GetCustomer)
	r.GET("/api/v1/customers/{id}/detail", handlers.Customer.GetCustomerDetail)
	r.PUT("/api/v1/customers/{id}", handlers.Customer.UpdateCustomer)
	r.DELETE("/api/v1/customers/{id}", handlers.Customer.DeleteCustomer)
	r.POST("/api/v1/customers/{id}/restore", handlers.Customer.RestoreCustomer)
	r.POST("/api/v1/customers/{id}/activate", handlers.Customer.ActivateCustomer)
	r.POST("/api/v1/customers/{id}/deactivate", handlers.Customer.DeactivateCustomer)
	r.POST("/api/v1/customers/{id}/products", handlers.Customer.AddProduct)
	r.DELETE("/api/v1/customers/{id}/products/{productID}", handlers.Customer.RemoveProduct)
	r.POST("/api/v1/customers/{id}/orders", handlers.Customer.AddOrder)
	r.DELETE("/api/v1/customers/{id}/orders/{orderID}", handlers.Customer.RemoveOrder)

	// Product routes
	r.GET("/api/v1/products", handlers.Product.ListProducts)
	r.GET("/api/v1/products/scroll", handlers.Product.ScrollProducts)
	r.POST("/api/v1/products", handlers.Product.CreateProduct)
	r.POST("/api/v1/products/bulk", handlers.Product.UpsertProducts)
	r.GET("/api/v1/products/{id}", handlers.Product.GetProduct)
	r.GET("/api/v1/products/{id}/detail", handlers.Product.GetProductDetail)
	r.PUT("/api/v1/products/{id}", handlers.Product.UpdateProduct)
	r.DELETE("/api/v1/products/{id}", handlers.Product.DeleteProduct)
	r.POST("/api/v1/products/{id}/restore", handlers.Product.RestoreProduct)
	r.POST("/api/v1/products/{id}/activate", handlers.Product.ActivateProduct)
	r.POST("/api/v1/products/{id}/deactivate", handlers.Product.DeactivateProduct)
	r.PUT("/api/v1/products/{id}/owner", handlers.Product.UpdateOwner)
	r.PUT("/api/v1/products/{id}/dealer", handlers.Product.UpdateDealer)
	r.POST("/api/v1/products/{id}/unrepairable", handlers.Product.MarkUnrepairable)
	r.POST("/api/v1/products/{id}/orders", handlers.Product.AddOrder)
	r.DELETE("/api/v1/products/{id}/orders/{orderID}", handlers.Product.RemoveOrder)

	return r
}
