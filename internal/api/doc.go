// Package api exposes the REST surface for driving the intent lifecycle:
// proposing, voting on, executing and cleaning up intents, plus audit
// history and Prometheus metrics endpoints.
package api
