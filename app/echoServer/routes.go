package echoServer

import (
	"unilib/app/echoServer/controller/account"
	"unilib/app/echoServer/controller/analytics"
	"unilib/app/echoServer/controller/auth"
	"unilib/app/echoServer/controller/book"
	"unilib/app/echoServer/controller/borrow"
	"unilib/app/echoServer/controller/recommend"
	"unilib/app/echoServer/controller/reservation"
	"unilib/model"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth        *auth.Controller
	Account     *account.Controller
	Book        *book.Controller
	Borrow      *borrow.Controller
	Reservation *reservation.Controller
	Recommend   *recommend.Controller
	Analytics   *analytics.Controller
	JWTSecret   string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/auth/register", c.Auth.Register)
	pub.POST("/auth/login", c.Auth.Login)

	// Authenticated
	api := e.Group("/v1")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		TokenLookup:   "header:Authorization:Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
	}))

	// Catalog
	api.GET("/books", c.Book.List)
	api.GET("/books/search", c.Book.Search)
	api.GET("/books/categories", c.Book.Categories)
	api.GET("/books/:id", c.Book.Detail)

	// Account
	api.GET("/account", c.Account.Me)
	api.PUT("/account/password", c.Account.UpdatePassword)
	api.POST("/account/photo", c.Account.UploadPhoto)

	// Borrowing (role checks live in the services)
	api.POST("/borrows", c.Borrow.Borrow)
	api.POST("/borrows/request", c.Borrow.RequestBorrow)
	api.POST("/borrows/:id/return-request", c.Borrow.RequestReturn)
	api.GET("/borrows/my", c.Borrow.MyLoans)

	// Reservations
	api.POST("/reservations", c.Reservation.Reserve)
	api.GET("/reservations/my", c.Reservation.Mine)

	// Recommendations
	api.GET("/recommendations", c.Recommend.ForMe)

	// Staff endpoints
	staff := api.Group("", RequireRole(model.RoleStaff))
	staff.POST("/books", c.Book.Create)
	staff.PUT("/books/:id", c.Book.Update)
	staff.DELETE("/books/:id", c.Book.Delete)
	staff.POST("/books/cover", c.Book.UploadCover)
	staff.GET("/borrows", c.Borrow.Loans)
	staff.POST("/borrows/:id/approve-return", c.Borrow.ApproveReturn)
	staff.POST("/borrows/:id/approve", c.Borrow.Approve)
	staff.POST("/borrows/:id/reject", c.Borrow.Reject)
	staff.GET("/analytics", c.Analytics.Dashboard)
}
