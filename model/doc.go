// Package model holds the data types shared across the messaging pipeline:
// messages, matches, conversation summaries, profiles and ephemeral typing
// status.
package model
