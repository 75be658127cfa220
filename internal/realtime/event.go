package realtime

import (
	"context"

	"github.com/rubikalib/client-go/internal/api"
)

// Activity is a presence event such as typing or uploading.
type Activity struct {
	// Kind is the activity type, for example "Typing", "Recording" or
	// "Uploading".
	Kind    string
	ChatID  string
	ActorID string
}

// MessageHandler receives decrypted update payloads.
type MessageHandler func(ctx context.Context, update api.Value)

// ActivityHandler receives activity events.
type ActivityHandler func(ctx context.Context, activity Activity)

type showActivity struct {
	Type       string `json:"type"`
	ObjectGUID string `json:"object_guid"`
	UserGUID   string `json:"user_guid"`
}

type activityPayload struct {
	ShowActivities []showActivity `json:"show_activities"`
}

type handshakeFrame struct {
	APIVersion string `json:"api_version"`
	Auth       string `json:"auth"`
	Data       string `json:"data"`
	Method     string `json:"method"`
}

type inboundFrame struct {
	DataEnc string `json:"data_enc"`
}
