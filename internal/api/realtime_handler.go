package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/logging"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	realtimeWriteTimeout = 5 * time.Second
	realtimePingInterval = 30 * time.Second
)

// RealtimeHandler upgrades to a websocket and streams updates for one channel
// @Summary Subscribe to realtime updates
// @Tags realtime
// @Param channel path string true "jobs, companies, job_activities, attachments or staff"
// @Router /realtime/{channel} [get]
func (h *Handlers) RealtimeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		if !slices.Contains(constants.RealtimeChannels, channel) {
			respondWithError(w, http.StatusNotFound, constants.MsgUnknownChannel)
			return
		}

		// the server write timeout must not cut long-lived subscriptions
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: h.deps.RealtimeOrigins,
		})
		if err != nil {
			logging.Warn("[RealtimeHandler] Websocket upgrade failed", "channel", channel, "error", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "unexpected close")

		messages, unsubscribe := h.deps.Hub.Subscribe(channel)
		defer unsubscribe()

		// subscribers only listen; CloseRead handles control frames and
		// cancels ctx when the client goes away
		ctx := conn.CloseRead(r.Context())

		logging.Debug("[RealtimeHandler] Subscriber connected", "channel", channel)

		ping := time.NewTicker(realtimePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, realtimeWriteTimeout)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					return
				}
			case msg, ok := <-messages:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "subscription closed")
					return
				}
				wctx, cancel := context.WithTimeout(ctx, realtimeWriteTimeout)
				err := wsjson.Write(wctx, conn, msg)
				cancel()
				if err != nil {
					logging.Debug("[RealtimeHandler] Subscriber write failed", "channel", channel, "error", err)
					return
				}
			}
		}
	}
}
