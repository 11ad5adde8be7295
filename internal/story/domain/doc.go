// Package domain holds the scenario data model and the pure resolvers the
// game session machine is built on: scene graph lookup, character roster
// construction, and placeholder substitution.
//
// Everything here is side-effect free. Remote mirroring, media resolution,
// and session lifecycle live in internal/story/session.
package domain
