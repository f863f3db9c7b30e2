package www

import (
	"log"
	"net/http"
	"strconv"
	"strings"
)

func (h *Handlers) apiConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	cfg.Lock()
	defer cfg.Unlock()
	h.jsonOK(w, map[string]any{
		"fleet":     cfg.Fleet,
		"vehicle":   cfg.Vehicle,
		"command":   cfg.Command,
		"messaging": cfg.Messaging,
		"redis":     map[string]any{"address": cfg.Redis.Address, "db": cfg.Redis.DB},
	})
}

// handleConfigSave updates one section of the configuration from form
// values and saves it. Messaging changes reconnect immediately; the other
// sections take effect on restart.
func (h *Handlers) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	section := r.FormValue("section")
	cfg := h.engine.AppConfig()

	cfg.Lock()
	switch section {
	case "messaging":
		cfg.Messaging.Backend = r.FormValue("msg_backend")
		cfg.Messaging.MQTT.Broker = r.FormValue("mqtt_broker")
		if p, err := strconv.Atoi(r.FormValue("mqtt_port")); err == nil {
			cfg.Messaging.MQTT.Port = p
		}
		cfg.Messaging.MQTT.ClientID = r.FormValue("mqtt_client_id")
		brokers := r.FormValue("kafka_brokers")
		if brokers != "" {
			cfg.Messaging.Kafka.Brokers = splitTrim(brokers, ",")
		} else {
			cfg.Messaging.Kafka.Brokers = []string{}
		}
	case "redis":
		cfg.Redis.Address = r.FormValue("redis_address")
		cfg.Redis.Password = r.FormValue("redis_password")
		if d, err := strconv.Atoi(r.FormValue("redis_db")); err == nil {
			cfg.Redis.DB = d
		}
	case "command":
		if v := r.FormValue("dock_rule"); v == "first" || v == "unique" {
			cfg.Command.DockRule = v
		}
		if f, err := strconv.ParseFloat(r.FormValue("waypoint_snap"), 64); err == nil && f > 0 {
			cfg.Command.WaypointSnap = f
		}
		if f, err := strconv.ParseFloat(r.FormValue("lane_snap"), 64); err == nil && f > 0 {
			cfg.Command.LaneSnap = f
		}
	default:
		cfg.Unlock()
		h.jsonError(w, "unknown section", http.StatusBadRequest)
		return
	}
	cfg.Unlock()

	if path := h.engine.ConfigPath(); path != "" {
		if err := cfg.Save(path); err != nil {
			log.Printf("config: save error: %v", err)
			h.jsonError(w, "Failed to save: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	// Hot-reload the affected subsystem
	if section == "messaging" {
		h.engine.ReconfigureMessaging()
	}

	log.Printf("config: %s section saved", section)
	h.jsonOK(w, map[string]string{"status": "ok", "section": section})
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
