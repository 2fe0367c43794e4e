package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/technicalkuldeep/blood-dapp/domain"
)

// Register wires the event API onto the provided Echo instance.
func Register(e *echo.Echo, store EventLog, broker Broadcaster, opts Options) {
	if opts.ReplayCount <= 0 {
		opts.ReplayCount = defaultReplayCount
	}

	e.POST("/api/events", postEvent(store, broker, opts), opts.Limiter.Middleware(), DecompressRequest())
	e.GET("/api/events", getEvents(store))
	e.GET("/api/events/stream", streamEvents(store, broker, opts))
	e.POST("/api/debug/events", debugEvent(opts))
	e.GET("/api/config", getConfig(opts.Chain))
	e.GET("/healthz", healthz())
}

// postEvent ingests one webhook delivery: secret gate, decode, normalize,
// commit, fan out. Ingestion is all-or-nothing per request; nothing is
// logged on a rejected delivery.
func postEvent(store EventLog, broker Broadcaster, opts Options) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newWebhookRequestMetrics(ctx, opts.Logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		if !opts.Gate.Allow(c.Request().Header.Get(SecretHeader)) {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, ackResponse{Error: "invalid secret"})
			return err
		}

		decodeStart := time.Now()
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, webhookMaxSize))
		var ev domain.Event
		if decodeErr := dec.Decode(&ev); decodeErr != nil || ev == nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, ackResponse{Error: "invalid body"})
			return err
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		if drift := domain.Normalize(ev, time.Now()); drift {
			metrics.SetDonorDrift(true)
			opts.Logger.WithField("donor", ev.Donor()).
				Warn("donor arrived as multi-key object, upstream format drift")
		}

		store.Append(ev)

		publishStart := time.Now()
		delivered := broker.Publish(ev)
		metrics.ObservePublish(time.Since(publishStart))
		metrics.SetDelivered(delivered)

		err = c.JSON(http.StatusOK, ackResponse{OK: true, DeliveredTo: delivered})
		return err
	}
}

// getEvents returns the retained history, newest first. An empty log is a
// success with an empty list, not an error.
func getEvents(store EventLog) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, historyResponse{OK: true, Events: store.Snapshot()})
	}
}

// debugEvent echoes whatever the upstream automation delivered, together
// with the chain config, so webhook wiring can be verified end to end
// without mutating the log.
func debugEvent(opts Options) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxSize))
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, ackResponse{Error: "read body"})
		}
		var received any
		if err := sonic.Unmarshal(raw, &received); err != nil {
			received = nil
		}
		opts.Logger.WithField("body", string(raw)).Info("debug webhook hit")
		return c.JSON(http.StatusOK, debugResponse{
			OK:            true,
			ConfigPresent: opts.Chain,
			Received:      received,
		})
	}
}

func getConfig(chain ChainConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, configResponse{OK: true, Config: chain})
	}
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}
