// Package devserver starts and stops the application's own development server.
//
// The Manager owns exactly one process handle. Start spawns the configured serve
// command in a new process group with PORT and NODE_ENV injected, drains its
// output into the diagnostic log, waits a startup grace period and then blocks
// until the health prober sees the server answering. Stop signals the whole
// process group and is safe to call any number of times.
//
// State transitions:
//
//	Idle → Starting → Waiting → Ready → Stopped
//	Idle → Starting → Failed → Stopped
//
// Spawning goes through the Launcher interface; ExecLauncher is the real
// implementation and tests substitute a mock.
package devserver
