// Package agent contains papermate's core (non-UI) logic.
//
// An Agent resolves the provider configuration once, builds the provider
// client, and answers questions while keeping a bounded conversation
// history.
package agent
