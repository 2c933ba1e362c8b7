// Package agent defines the streaming chunk protocol an agent response
// must satisfy: an ordered, cancellable, pull-based sequence of sentence,
// tool-status and completion chunks produced for one user turn.
package agent
