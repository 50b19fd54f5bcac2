// Package model defines the data types shared by the feed client and its
// collaborators.
//
// Conventions:
//   - Sample timestamps are kept as the server sent them (ISO-8601 or
//     server-defined); the client never reparses them.
//   - ReceivedAt is the local wall clock at read time, used by the archive.
package model
