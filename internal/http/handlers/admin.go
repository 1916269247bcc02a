package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"sort"
	"strings"

	"facestudio/internal/middleware"
	"facestudio/internal/providers/coze"
)

type cozeConfigResponse struct {
	Updated []string `json:"updated"`
}

// UpdateCozeConfig writes Coze settings to the config store and drops the
// cached snapshot so the next workflow call sees them.
func (a *App) UpdateCozeConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&values); err != nil || len(values) == 0 {
		a.errorLocalized(w, r, http.StatusBadRequest, "bad_request", "expected a non-empty object of config values")
		return
	}
	allowed := coze.ConfigKeys()
	keys := make([]string, 0, len(values))
	for key, value := range values {
		if !slices.Contains(allowed, key) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown config key "+key)
			return
		}
		if strings.TrimSpace(value) == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "empty value for "+key)
			return
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := a.Settings.SetValue(r.Context(), key, values[key]); err != nil {
			a.logger(r).Error().Err(err).Str("key", key).Msg("admin: config write failed")
			a.errorLocalized(w, r, http.StatusInternalServerError, "internal", "failed to store config")
			return
		}
	}
	a.CozeConfig.Clear()
	a.logger(r).Info().
		Strs("keys", keys).
		Str("user_id", middleware.UserIDFromContext(r.Context())).
		Msg("admin: coze config updated")
	a.json(w, http.StatusOK, cozeConfigResponse{Updated: keys})
}

// InvalidateCozeConfig drops the cached Coze settings.
func (a *App) InvalidateCozeConfig(w http.ResponseWriter, r *http.Request) {
	a.CozeConfig.Clear()
	a.json(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
