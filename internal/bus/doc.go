// Package bus broadcasts intent lifecycle transitions to off-process
// consumers. Drivers: in-memory channel, Redis list, RabbitMQ queue.
package bus
