package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"storefront/internal/config"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/store"
	"storefront/internal/usecase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 永続化済みのカートをサーバー無しで操作する
type app struct {
	storage *infraRepo.Storage
	store   *store.Store
	cart    *usecase.CartUsecase
}

type openFunc func(ctx context.Context) (*app, error)

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	storage, err := infraRepo.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newApp(ctx, storage, cfg, log), nil
}

func newApp(ctx context.Context, storage *infraRepo.Storage, cfg config.Config, log *zap.Logger) *app {
	s := store.New(ctx, storage.KV,
		store.WithKey(cfg.CartKey),
		store.WithLogger(log.Named("cart")),
		store.WithHydrateTimeout(cfg.HydrateTimeout),
		store.WithWriteTimeout(cfg.WriteTimeout),
	)
	<-s.Hydrated()

	return &app{
		storage: storage,
		store:   s,
		cart:    usecase.NewCartUsecase(s, storage.Products),
	}
}

func (a *app) Close() error {
	return a.storage.Close()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(openApp)
}

func newRootCmdWith(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit the persisted cart",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newShowCmd(open),
		newAddCmd(open),
		newRemoveCmd(open),
		newClearCmd(open),
	)
	return root
}

// 開いて実行して閉じる
func withApp(cmd *cobra.Command, open openFunc, fn func(a *app) (usecase.CartResponse, error)) error {
	a, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out, err := fn(a)
	if err != nil {
		return err
	}
	return printCart(cmd.OutOrStdout(), out)
}

func newShowCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app) (usecase.CartResponse, error) {
				return a.cart.GetCart(cmd.Context())
			})
		},
	}
}

func newAddCmd(open openFunc) *cobra.Command {
	var (
		size     string
		color    string
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app) (usecase.CartResponse, error) {
				return a.cart.AddToCart(cmd.Context(), usecase.AddCartInput{
					ProductID: modelID(args[0]),
					Size:      size,
					Color:     color,
					Quantity:  quantity,
				})
			})
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "size (default: first available)")
	cmd.Flags().StringVar(&color, "color", "", "color (default: first available)")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity")
	return cmd
}

func newRemoveCmd(open openFunc) *cobra.Command {
	var (
		size  string
		color string
	)

	cmd := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a line item (exact id, size and color)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app) (usecase.CartResponse, error) {
				return a.cart.RemoveFromCart(cmd.Context(), usecase.RemoveCartInput{
					ProductID: modelID(args[0]),
					Size:      size,
					Color:     color,
				})
			})
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "size")
	cmd.Flags().StringVar(&color, "color", "", "color")
	return cmd
}

func newClearCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app) (usecase.CartResponse, error) {
				return a.cart.ClearCart(cmd.Context())
			})
		},
	}
}

func printCart(w io.Writer, out usecase.CartResponse) error {
	if len(out.Items) == 0 {
		_, err := fmt.Fprintln(w, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tCOLOR\tQTY\tSUBTOTAL")
	for _, it := range out.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			it.ID, it.Name, it.SelectedSize, it.SelectedColor, it.Quantity, it.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t\t%d\t%s\n", out.Count, out.Total.StringFixed(2))
	return tw.Flush()
}
