// Package sse streams job events to HTTP clients as Server-Sent Events.
//
// A Hub routes frames to registered clients by glob pattern over client ids.
// A Broadcaster subscribed to the job controller publishes every job event
// to the clients following that job ("job:<id>:*") and to feed clients
// ("feed:*"). ServeJob replays the retained backlog of a job before live
// frames, so a client that reconnects with Last-Event-ID misses nothing
// still retained.
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	ctrl.Subscribe(sse.NewBroadcaster(hub, log))
package sse
