package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/technicalkuldeep/blood-dapp/domain"
)

// pingInterval keeps proxies and load balancers from idling out a quiet
// stream.
const pingInterval = 15 * time.Second

// streamEvents serves the live event stream. A new subscriber first gets
// a catch-up replay of recent history, oldest of the batch first so the
// client's display order matches later live pushes, then every published
// event until the connection closes. Disconnect, write failure and server
// shutdown all deregister the subscriber.
func streamEvents(store EventLog, broker Broadcaster, opts Options) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)

		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		opts.Logger.WithField("subscriber", sub.ID()).Debug("stream opened")

		replay := store.SnapshotRecent(opts.ReplayCount)
		for i := len(replay) - 1; i >= 0; i-- {
			if err := writeEventFrame(c.Response(), replay[i]); err != nil {
				return nil
			}
		}
		flusher.Flush()

		ctx := c.Request().Context()
		ping := time.NewTicker(pingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				opts.Logger.WithField("subscriber", sub.ID()).Debug("stream closed by client")
				return nil
			case <-sub.Done():
				return nil
			case ev := <-sub.Events():
				if err := writeEventFrame(c.Response(), ev); err != nil {
					return nil
				}
				flusher.Flush()
			case <-ping.C:
				if _, err := io.WriteString(c.Response(), ": ping\n\n"); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEventFrame(w io.Writer, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "data: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n\n")
	return err
}
