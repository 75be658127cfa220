// Package transfer moves file bytes to and from the storage servers.
//
// Uploads are announced with requestSendFile and then POSTed in fixed-size
// parts. Downloads are fetched in ranged GETs and written to the output file
// one chunk at a time; after each chunk is synced a line is appended to a
// sidecar journal (<output>.lock) so an interrupted download resumes from the
// last durable offset. The journal is only trusted when its
// (access_hash, file_id, dc) tuple matches the new request.
package transfer
