package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/logger"
)

type statusResponse struct {
	Status string `json:"status"`
}

type cameraStartResponse struct {
	State     portal.State `json:"state"`
	Available bool         `json:"available"`
	Streaming bool         `json:"streaming"`
	Remote    string       `json:"remote,omitempty"`
}

type screenshotRequest struct {
	Interactive *bool `json:"interactive"`
	Modal       *bool `json:"modal"`
}

type wallpaperRequest struct {
	URI         string  `json:"uri"`
	ShowPreview *bool   `json:"show_preview"`
	SetOn       *string `json:"set_on"`
}

func (r *wallpaperRequest) validate() error {
	if r.URI == "" {
		return errors.New("missing uri")
	}
	if r.SetOn != nil {
		if _, err := portal.ParseSetOn(*r.SetOn); err != nil {
			return err
		}
	}
	return nil
}

func (r *wallpaperRequest) options() portal.WallpaperOptions {
	opts := portal.WallpaperOptions{ShowPreview: r.ShowPreview}
	if r.SetOn != nil {
		setOn := portal.SetOn(*r.SetOn)
		opts.SetOn = &setOn
	}
	return opts
}

// withBody parses and validates the JSON body, then calls next.
// An empty body is accepted when optional is set.
func withBody[T any](
	optional bool,
	validate func(*T) error,
	next func(w http.ResponseWriter, r *http.Request, req *T),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req T
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if !optional || !errors.Is(err, io.EOF) {
				http.Error(w, "invalid JSON payload", http.StatusBadRequest)
				return
			}
		}

		if validate != nil {
			if err := validate(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		next(w, r, &req)
	}
}

// handlePortalError maps portal errors to HTTP responses. A user
// cancellation is a normal answer, not a failure.
func handlePortalError(w http.ResponseWriter, err error) {
	if errors.Is(err, portal.ErrCancelled) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "cancelled"})
		return
	}
	if errors.Is(err, portal.ErrAlreadyActive) || errors.Is(err, portal.ErrStopped) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	var transportErr *portal.TransportError
	if errors.As(err, &transportErr) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	var respErr *portal.ResponseError
	var decodeErr *portal.DecodeError
	if errors.As(err, &respErr) || errors.As(err, &decodeErr) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if errors.Is(err, portal.ErrAbandoned) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	logger.Error("[api] unexpected portal error: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func StartCameraHandler(cam *portal.CameraSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cam.Start(r.Context())
		if err != nil {
			handlePortalError(w, err)
			return
		}
		resp := cameraStartResponse{State: cam.State(), Available: res.Available}
		if res.Stream != nil {
			// the descriptor itself stays with the daemon
			resp.Streaming = true
			resp.Remote = res.Stream.Name()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func StopCameraHandler(cam *portal.CameraSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cam.Stop()
		w.WriteHeader(http.StatusAccepted)
	}
}

func TakeScreenshotHandler(c *portal.Client) http.HandlerFunc {
	return withBody(true, nil, func(w http.ResponseWriter, r *http.Request, req *screenshotRequest) {
		window := c.Window(r.Context(), r.URL.Query().Get("parent_window"))
		res, err := c.Screenshot.Take(r.Context(), window, portal.ScreenshotOptions{
			Interactive: req.Interactive,
			Modal:       req.Modal,
		})
		if err != nil {
			handlePortalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func PickColorHandler(c *portal.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := c.Window(r.Context(), r.URL.Query().Get("parent_window"))
		color, err := c.Screenshot.PickColor(r.Context(), window)
		if err != nil {
			handlePortalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, color)
	}
}

func SetWallpaperHandler(c *portal.Client) http.HandlerFunc {
	return withBody(false, (*wallpaperRequest).validate, func(w http.ResponseWriter, r *http.Request, req *wallpaperRequest) {
		window := c.Window(r.Context(), r.URL.Query().Get("parent_window"))
		if err := c.Wallpaper.SetURI(r.Context(), window, req.URI, req.options()); err != nil {
			handlePortalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "set"})
	})
}
