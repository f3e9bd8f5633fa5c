package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/botlink-core/internal/device"
)

// deviceListResponse is the full device inventory plus the fleet
// sensor averages.
type deviceListResponse struct {
	Devices     []device.Snapshot `json:"devices"`
	Humidity    float64           `json:"humidity"`
	Temperature float64           `json:"temperature"`
}

// handleListDevices returns every known device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	resp := deviceListResponse{
		Devices:     make([]device.Snapshot, 0, len(all)),
		Humidity:    s.registry.HumidityAverage(),
		Temperature: s.registry.TemperatureAverage(),
	}
	for _, d := range all {
		resp.Devices = append(resp.Devices, d.Snapshot())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDevice returns one device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// handleRenameDevice updates a device's display name.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	d.SetName(body.Name)
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// handleSetSwitch sets one SwitchBot channel from the dashboard.
func (s *Server) handleSetSwitch(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}

	sb, ok := d.(*device.SwitchBot)
	if !ok {
		writeBadRequest(w, "device is not a switch bot")
		return
	}

	var body struct {
		Channel *int  `json:"channel"`
		State   *bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Channel == nil || body.State == nil {
		writeBadRequest(w, "channel and state are required")
		return
	}

	if err := sb.SetState(*body.Channel, *body.State); err != nil {
		if errors.Is(err, device.ErrInvalidChannel) {
			writeBadRequest(w, "channel must be 0 or 1")
			return
		}
		writeInternalError(w, "switch command failed")
		return
	}

	writeJSON(w, http.StatusOK, sb.Snapshot())
}
