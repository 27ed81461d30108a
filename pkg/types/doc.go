// Package types defines the roles, replication modes, commands, status
// reports and error codes shared across replicad.
//
// Error codes travel as int16 values in the "error" attributes of
// control messages. Code implements error so operations can return
// codes directly and CodeOf can recover them from wrapped errors.
package types
