package handler

import (
	"fmt"
	"net/http"
	"sync"

	"storefront/internal/domain/model"
	"storefront/internal/store"
	"storefront/internal/usecase"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// ストアの変更通知
type CartEvents interface {
	Subscribe(fn func(store.State)) (unsubscribe func())
	Snapshot() store.State
}

// /cartのHTTP
type CartHandler struct {
	uc     *usecase.CartUsecase
	events CartEvents

	// サーバー停止開始で閉じる（SSEを終わらせる）
	done      chan struct{}
	closeOnce sync.Once
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, events CartEvents) *CartHandler {
	return &CartHandler{uc: uc, events: events, done: make(chan struct{})}
}

// Shutdownはリクエストのctxを止めないので、ストリームは自分で閉じる
func (h *CartHandler) closeStreams() {
	h.closeOnce.Do(func() { close(h.done) })
}

type AddCartRequest struct {
	ProductID model.ProductID `json:"productId"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
}

type RemoveCartRequest struct {
	ProductID model.ProductID `json:"productId" query:"productId"`
	Size      string          `json:"size" query:"size"`
	Color     string          `json:"color" query:"color"`
}

func (h *CartHandler) RegisterRoutes(e *echo.Echo) {
	e.Server.RegisterOnShutdown(h.closeStreams)

	g := e.Group("/cart")

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.DELETE("", h.clearCart)
	g.DELETE("/items", h.removeItem)
	g.GET("/events", h.stream)
}

func (h *CartHandler) getCart(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AddToCart(c.Request().Context(), usecase.AddCartInput{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// JSONボディ {productId,size,color}。クエリ（?productId=&size=&color=）でも可
func (h *CartHandler) removeItem(c echo.Context) error {
	var req RemoveCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.RemoveFromCart(c.Request().Context(), usecase.RemoveCartInput{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) clearCart(c echo.Context) error {
	out, err := h.uc.ClearCart(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// server-sent events。接続時に現在の状態、以降は変更ごとに1フレーム。
func (h *CartHandler) stream(c echo.Context) error {
	ctx := c.Request().Context()

	// 遅い購読者は古い状態を捨てて最新だけ受け取る
	ch := make(chan store.State, 8)
	unsubscribe := h.events.Subscribe(func(st store.State) {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	})
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, h.events.Snapshot()); err != nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case st := <-ch:
			if err := writeEvent(w, st); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, st store.State) error {
	b, err := json.Marshal(usecase.BuildCartResponse(st))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", b); err != nil {
		return err
	}
	w.Flush()
	return nil
}
