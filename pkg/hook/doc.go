// Package hook runs the operator's event scripts. A role change runs
//
//	<exec> role <resource> <old role> <new role> <role after start>
//
// in the background with a timeout. Failures are logged and counted,
// never reported to the client that caused the event.
package hook
