// Package main university library API.
//
// @title           University Library API
// @version         1.0
// @description     Library service (catalog, borrowing, reservations, analytics).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"unilib/app/echoServer"
	accountctrl "unilib/app/echoServer/controller/account"
	analyticsctrl "unilib/app/echoServer/controller/analytics"
	authctrl "unilib/app/echoServer/controller/auth"
	bookctrl "unilib/app/echoServer/controller/book"
	borrowctrl "unilib/app/echoServer/controller/borrow"
	recommendctrl "unilib/app/echoServer/controller/recommend"
	reservationctrl "unilib/app/echoServer/controller/reservation"
	"unilib/app/echoServer/validation"
	"unilib/config"
	analyticsrepo "unilib/repository/analytics"
	authrepo "unilib/repository/auth"
	bookrepo "unilib/repository/book"
	borrowrepo "unilib/repository/borrow"
	metadatarepo "unilib/repository/metadata"
	reservationrepo "unilib/repository/reservation"
	storagerepo "unilib/repository/storage"
	analyticssvc "unilib/service/analytics"
	authsvc "unilib/service/auth"
	booksvc "unilib/service/book"
	borrowsvc "unilib/service/borrow"
	recommendsvc "unilib/service/recommend"
	reservationsvc "unilib/service/reservation"
	"unilib/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB over pgx stdlib
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// object storage (optional in dev)
	var uploader storagerepo.Uploader
	if cfg.S3Bucket != "" {
		s3up, err := storagerepo.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			log.Error("s3 init failed", "err", err)
			os.Exit(1)
		}
		uploader = s3up
	}

	// repos
	ar := authrepo.New(db)
	br := bookrepo.New(db)
	rr := borrowrepo.New(db)
	vr := reservationrepo.New(db)
	nr := analyticsrepo.New(db)
	mr := metadatarepo.NewHTTP()

	// services
	as := authsvc.New(ar, uploader, cfg.JWTSecret)
	bs := booksvc.New(br, mr, uploader, log)
	ws := borrowsvc.New(rr)
	vs := reservationsvc.New(vr)
	cs := recommendsvc.New(rr, br)
	ns := analyticssvc.New(nr)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	accountC := &accountctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: ws, V: v, Log: log}
	reservationC := &reservationctrl.Controller{Svc: vs, V: v, Log: log}
	recommendC := &recommendctrl.Controller{Svc: cs, Log: log}
	analyticsC := &analyticsctrl.Controller{Svc: ns, Log: log}

	// overdue sweeper: flips past-due loans so dashboards and fines see them
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for range t.C {
			if n, err := ws.SweepOverdue(ctx); err != nil {
				log.Error("overdue sweep failed", "err", err)
			} else if n > 0 {
				log.Info("overdue sweep", "flipped", n)
			}
		}
	}()

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Account:     accountC,
		Book:        bookC,
		Borrow:      borrowC,
		Reservation: reservationC,
		Recommend:   recommendC,
		Analytics:   analyticsC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	slog.Info("starting server", "port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
