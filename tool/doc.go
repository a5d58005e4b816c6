// Package tool is the registry and dispatch boundary between the MCP protocol
// layer and the Oracle SCM tool handlers.
//
// A Registry is built once at startup, sealed when serving begins, and then
// consulted by name for every call. Dispatch never panics: handler failures,
// argument validation failures and unknown names all come back as a Response
// with OK false and a ToolError code.
package tool
