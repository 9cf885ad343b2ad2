package proxy

import (
	"net/http"
	"time"

	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// modelsHandler lists the configured model names. The upstream has no model listing
// endpoint, and any listed name is accepted by /v1/chat/completions, since every
// request is served by the single upstream model.
func modelsHandler(models []string, ownedBy string, clock func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		created := clock().Unix()

		data := make([]types.Model, 0, len(models))
		for _, id := range models {
			data = append(data, types.Model{
				ID:      id,
				Object:  types.ObjectModel,
				Created: created,
				OwnedBy: ownedBy,
			})
		}

		writeJSON(r.Context(), w, types.ListModelsResponse{
			Object: types.ObjectList,
			Data:   data,
		}, http.StatusOK)
	}
}
