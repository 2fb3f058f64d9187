package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"RoboCtl/internal/device"
	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

const maxFrameBody = 4 << 10

// handleRobot serves the robot protocol on /.
func (a *App) handleRobot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		a.handlePing(w, r)
	case http.MethodPost:
		a.handleFrame(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePing reports whether the robot link can be opened.
func (a *App) handlePing(w http.ResponseWriter, r *http.Request) {
	if err := a.Device.Probe(r.Context()); err != nil {
		a.log.Warnw("robot ping failed", "error", err)
		http.Error(w, fmt.Sprintf("Could not connect to robot: %v", err), http.StatusServiceUnavailable)
		return
	}
	msg := "Robot is available"
	if a.mock {
		msg += " (MOCK MODE)"
	}
	_, _ = io.WriteString(w, msg)
}

// handleFrame forwards one frame to the robot and relays the reply.
func (a *App) handleFrame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading request body: %v", err), http.StatusBadRequest)
		return
	}
	if cerr := r.Body.Close(); cerr != nil {
		a.log.Debugw("close frame body", "error", cerr)
	}

	frame := parser.NormalizeFrame(string(body))
	if state, err := parser.DecodeControl(frame); err == nil {
		a.log.Debugw("forwarding frame", "frame", frame, "led1", state.LED1, "led2", state.LED2,
			"left", state.Left, "right", state.Right)
	} else {
		a.log.Warnw("forwarding unrecognized frame", "frame", frame, "error", err)
	}

	reply, err := a.Device.Exchange(r.Context(), frame)
	switch {
	case errors.Is(err, device.ErrNoResponse):
		a.log.Infow("frame sent, no response", "frame", frame)
		w.WriteHeader(http.StatusOK)
		return
	case errors.Is(err, device.ErrUnreachable):
		a.log.Warnw("robot unreachable", "error", err)
		http.Error(w, fmt.Sprintf("Could not connect to robot: %v", err), http.StatusServiceUnavailable)
		return
	case err != nil:
		a.log.Warnw("robot exchange failed", "error", err)
		http.Error(w, fmt.Sprintf("Error exchanging frame with robot: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, reply); err != nil {
		a.log.Debugw("write reply", "error", err)
	}
	a.record(reply)
}

// record stores and broadcasts a reply that decodes as telemetry.
func (a *App) record(reply string) {
	tf, err := parser.DecodeTelemetry(reply)
	if err != nil {
		a.log.Debugw("reply is not telemetry", "reply", reply, "error", err)
		return
	}

	if a.Store != nil {
		rec := model.TelemetryRecord{At: time.Now().UTC(), Frame: reply, Telemetry: tf}
		if err := a.Store.Put(rec); err != nil {
			a.log.Warnw("failed to save telemetry", "error", err)
		}
	}

	msg, err := a.Feed.EncodeTelemetry(tf)
	if err != nil {
		a.log.Warnw("encode feed message", "error", err)
		return
	}
	a.hub.broadcast(msg)
}
