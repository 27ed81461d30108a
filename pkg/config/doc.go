/*
Package config loads the replicad configuration file.

The file is YAML:

	control_socket: /var/run/replicad/control.sock
	metrics_addr: 127.0.0.1:9477
	state_dir: /var/lib/replicad
	restore_roles: false
	worker_timeout: 5s
	stop_timeout: 30s
	restart_delay: 1s
	hook_timeout: 30s
	log_level: info
	resources:
	  - name: data0
	    local_path: /dev/sdb
	    remote_address: tcp://10.0.0.2:8457
	    replication: memsync
	    exec: /usr/local/sbin/replica-hook

Missing values are filled from Default, resources get their provider
name, extent size (2 MiB) and keep-dirty count (64) when omitted, and
the result is validated before use. Table turns the resources into the
daemon's resource table.
*/
package config
