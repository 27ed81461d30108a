/*
Package storage persists resource role assignments.

BoltStore keeps two buckets in <state_dir>/replicad.db:

	roles     resource name -> latest RoleRecord (JSON)
	history   resource name -> nested bucket of RoleRecords keyed by sequence

The history of each resource is bounded to DefaultHistoryLimit entries;
the oldest records are trimmed in the same transaction that appends a
new one. With restore_roles enabled the daemon replays the roles bucket
at startup.
*/
package storage
