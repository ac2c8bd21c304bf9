// Package ir provides the value types shared by the rubberdux engines.
//
// This package contains data definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Event content and action payloads are IRValue trees (no floats)
//   - Events are tagged by Name, actions by Type; consumers switch on the tag
//   - All JSON tags use snake_case
//   - Content-addressed identity uses RFC 8785 canonical JSON
package ir
