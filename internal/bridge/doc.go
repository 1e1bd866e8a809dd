// Package bridge drives a sandboxed engine from the host side.
//
// A Session owns one engine connection: either a reader/writer pair or a
// child process speaking the engine protocol on its stdin and stdout. Only
// text crosses the connection. Fit results arrive as a single wire line and
// plots as base64, which the session decodes and stages in a per-session
// scratch directory.
//
// A session carries at most one request at a time and never retries. When a
// call's context expires the session is marked broken and the child process
// is killed; callers start a new session if they want to continue.
package bridge
