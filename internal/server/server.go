package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	appmw "storefront/internal/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ルート登録を持つハンドラ
type Routes interface {
	RegisterRoutes(e *echo.Echo)
}

// New は共通ミドルウェア付きのechoを組み立てる。
func New(logger *zap.Logger, routes ...Routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(appmw.RequestLog(logger))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, r := range routes {
		r.RegisterRoutes(e)
	}
	return e
}

// Start はctxが終わるまで待ち受け、終わったらgraceful shutdownする。
func Start(ctx context.Context, e *echo.Echo, addr string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
