package bybit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// Public is the spot public-channel websocket client.
type Public struct {
	wss *ws.WebSocket
}

func NewPublic(ctx context.Context) *Public {
	return &Public{
		wss: ws.New(ctx, publicSpotWsURL),
	}
}

func (repo *Public) Len() int {
	return repo.wss.Len()
}

func (repo *Public) Close() {
	repo.wss.Close()
}

func (repo *Public) CloseWhenEmpty() bool {
	if repo.Len() == 0 {
		repo.Close()
		logs.Info("close websocket. reason: empty")
		return true
	}

	return false
}

func (repo *Public) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

// SubscribeDepth subscribes the 50-level order book stream for ticker.
func (repo *Public) SubscribeDepth(ctx context.Context, ticker string) error {
	topic := fmt.Sprintf("orderbook.50.%s", Symbol(ticker))
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				Op:   "subscribe",
				Args: []string{topic},
			}

			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[subscribeResponse](m)
			if !ok || resp.Op != "subscribe" {
				return false, nil
			}

			if !resp.Success {
				return false, errors.Errorf("subscribe and wait, err: %s", resp.RetMsg)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// ObserveDepth feeds every order book message of the subscribed topic
// to handler until the context ends or the stream closes.
func (repo *Public) ObserveDepth(ctx context.Context, handler func(d DepthUpdate)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[DepthUpdate](m)
				if !ok || !strings.HasPrefix(resp.Topic, "orderbook.") {
					continue
				}

				handler(resp)
			}
		}
	}()

	return cancel
}
