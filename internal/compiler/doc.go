// Package compiler turns CUE pipe declarations into ir.PipeSpec values.
//
// Pipes are declared under a top-level "pipe" struct keyed by pipe ID:
//
//	pipe: ready: {
//		streams: ["login", "profile-loaded"]
//		emit: {
//			type: "ready"
//			payload: {user: "login.user", "profile.name": "profile-loaded.name"}
//			static: {source: "pipe"}
//		}
//		filter: {expr: "login.ok", equals: true}
//	}
//
// Compilation uses the CUE Go API directly. Errors carry source positions.
package compiler
