// Package session drives a play session through a scenario's scene graph.
//
// The Machine is the only stateful component of the core: it owns the
// current GameSession, runs every transition, mirrors state to the remote
// session store through the SessionAPI collaborator, and broadcasts a change
// notification after each mutation. Local state is authoritative for
// responsiveness: apart from session creation, remote calls are best-effort
// and their failures are logged, not surfaced.
package session
