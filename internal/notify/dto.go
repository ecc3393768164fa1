package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/kindling-app/kindling/internal/db"
)

// DTO is the notification payload shared by the push channel and the REST
// collaborator. Ids are strings on the wire.
type DTO struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	ActorID     *string           `json:"actor_id"`
	Type        string            `json:"type"`
	ReadAt      *time.Time        `json:"read_at"`
	DeliveredAt *time.Time        `json:"delivered_at"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DTOFromRow converts a stored notification into its wire shape.
func DTOFromRow(n *db.Notification) DTO {
	dto := DTO{
		ID:          n.ID,
		UserID:      strconv.FormatUint(n.UserID, 10),
		Type:        n.Type,
		ReadAt:      n.ReadAt,
		DeliveredAt: n.DeliveredAt,
		Status:      n.Status,
		CreatedAt:   n.CreatedAt,
	}
	if n.ActorID != nil {
		actor := strconv.FormatUint(*n.ActorID, 10)
		dto.ActorID = &actor
	}
	if n.Metadata != "" {
		// metadata is opaque; a row with unparsable metadata still ships
		var md map[string]string
		if err := json.Unmarshal([]byte(n.Metadata), &md); err == nil {
			dto.Metadata = md
		}
	}
	return dto
}
