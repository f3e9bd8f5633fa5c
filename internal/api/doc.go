// Package api provides the HTTP front of BotLink Core.
//
// It serves the device and schedule query endpoints under /api/v1 and
// mounts the websocket path that devices and observers connect to.
// Mutations that touch device state (rename, switch commands) go
// through the same registry objects the hub feeds, so a dashboard
// command and a firmware frame race exactly the way two firmware
// frames would.
//
// The server follows the infrastructure lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
