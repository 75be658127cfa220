// Package realtime maintains the push socket that delivers new messages and
// chat activity.
//
// A [Channel] dials one socket URL, sends the handshake carrying the account
// key in its wire form, then runs two activities over the same connection: a
// receive loop and a keep-alive timer. Writes from both are serialized.
//
// Inbound frames carrying data_enc are decrypted with the account key.
// Payloads listing show_activities are delivered to activity handlers, one
// call per entry; every other payload goes to message handlers as a raw
// value.
//
// # Reconnect
//
// A dropped connection ends [Channel.Run] with an error unless
// Config.MaxReconnects allows redialing. Redials back off exponentially from
// Config.ReconnectWait.
package realtime
