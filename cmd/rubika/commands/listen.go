package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rubika "github.com/rubikalib/client-go"
)

// listen: print updates as JSON lines until interrupted.
func listenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print updates and activities until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			emit := func(v any) {
				mu.Lock()
				defer mu.Unlock()
				_ = enc.Encode(v)
			}

			a.client.Subscribe(func(_ context.Context, update rubika.Value) {
				emit(update)
			}, func(_ context.Context, act rubika.Activity) {
				emit(map[string]string{"activity": act.Kind, "chat": act.ChatID, "user": act.ActorID})
			})

			err := a.client.Listen(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&a.reconnects, "reconnect", 0, "redial a dropped socket up to n times")
	cmd.Flags().DurationVar(&a.reconnectWait, "reconnect-wait", 5*time.Second, "initial wait between redials")
	return cmd
}
