package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scheerer/homelights/internal/color"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/bulbs", func(r chi.Router) {
			r.Get("/", s.handleListBulbs)
			r.Put("/", s.handleSetBulbs)

			r.Get("/rotation", s.handleGetRotation)
			r.Post("/rotation", s.handleStartRotation)
			r.Delete("/rotation", s.handleStopRotation)

			r.Get("/follow", s.handleGetFollow)
			r.Post("/follow", s.handleStartFollow)
			r.Delete("/follow", s.handleStopFollow)

			r.Get("/{name}", s.handleGetBulb)
			r.Put("/{name}", s.handleSetBulb)
		})

		r.Route("/outlets", func(r chi.Router) {
			r.Get("/", s.handleListOutlets)
			r.Get("/{name}", s.handleGetOutlet)
			r.Put("/{name}", s.handleSetOutlet)
		})

		r.Get("/ws", s.handleWebSocket)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !s.bulbs.Ready() || !s.outlets.Ready() {
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"bulbs":   s.bulbs.Statuses(),
		"outlets": s.outlets.Statuses(),
	})
}

func (s *Server) handleListBulbs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "hex" {
		writeJSON(w, http.StatusOK, s.bulbs.ColorsHex())
		return
	}
	writeJSON(w, http.StatusOK, s.bulbs.Colors())
}

func (s *Server) handleSetBulbs(w http.ResponseWriter, r *http.Request) {
	var colors map[string]string
	if err := json.NewDecoder(r.Body).Decode(&colors); err != nil {
		writeBadRequest(w, "body must map bulb names to hex colors")
		return
	}
	writeJSON(w, http.StatusOK, s.bulbs.SetColorsHex(colors))
}

func (s *Server) handleGetBulb(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.bulbs.GetColor(chi.URLParam(r, "name")))
}

type setBulbRequest struct {
	Color string     `json:"color"`
	RGB   *color.RGB `json:"rgb"`
}

func (s *Server) handleSetBulb(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setBulbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.RGB != nil {
		writeResult(w, s.bulbs.SetColor(name, *req.RGB))
		return
	}
	writeResult(w, s.bulbs.SetColorHex(name, req.Color))
}

type rotationRequest struct {
	Speed *float64 `json:"speed"`
	// Interval is in seconds.
	Interval  *float64 `json:"interval"`
	Clockwise *bool    `json:"clockwise"`
}

type rotationResponse struct {
	Active    bool    `json:"active"`
	Speed     int     `json:"speed"`
	Interval  float64 `json:"interval"`
	Clockwise bool    `json:"clockwise"`
}

func (s *Server) rotationResponse() rotationResponse {
	st := s.bulbs.RotationStatus()
	return rotationResponse{
		Active:    st.Active,
		Speed:     st.Speed,
		Interval:  st.Interval.Seconds(),
		Clockwise: st.Clockwise,
	}
}

func (s *Server) handleGetRotation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rotationResponse())
}

func (s *Server) handleStartRotation(w http.ResponseWriter, r *http.Request) {
	req := rotationRequest{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	speed, interval, clockwise := s.opts.RotationSpeed, s.opts.RotationInterval, true
	if req.Speed != nil {
		speed = *req.Speed
	}
	if req.Interval != nil {
		interval = time.Duration(*req.Interval * float64(time.Second))
	}
	if req.Clockwise != nil {
		clockwise = *req.Clockwise
	}

	if s.follower != nil {
		s.follower.Stop()
	}
	if err := s.bulbs.Rotate(speed, interval, clockwise); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.rotationResponse())
}

func (s *Server) handleStopRotation(w http.ResponseWriter, _ *http.Request) {
	s.bulbs.StopRotation()
	writeJSON(w, http.StatusOK, s.rotationResponse())
}

func (s *Server) handleGetFollow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"active": s.follower != nil && s.follower.Active()})
}

func (s *Server) handleStartFollow(w http.ResponseWriter, _ *http.Request) {
	if s.follower == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeNotImplemented, "screen follow is not available")
		return
	}
	s.bulbs.StopRotation()
	s.follower.Start(s.followCtx)
	writeJSON(w, http.StatusOK, map[string]bool{"active": true})
}

func (s *Server) handleStopFollow(w http.ResponseWriter, _ *http.Request) {
	if s.follower == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeNotImplemented, "screen follow is not available")
		return
	}
	s.follower.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (s *Server) handleListOutlets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.outlets.States())
}

func (s *Server) handleGetOutlet(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.outlets.GetState(chi.URLParam(r, "name")))
}

type setOutletRequest struct {
	On *bool `json:"on"`
}

func (s *Server) handleSetOutlet(w http.ResponseWriter, r *http.Request) {
	var req setOutletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		writeBadRequest(w, `body must be {"on": true|false}`)
		return
	}
	writeResult(w, s.outlets.SetState(chi.URLParam(r, "name"), *req.On))
}
