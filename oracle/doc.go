// Package oracle talks to Oracle Fusion Cloud: OAuth 2.0 authorization code
// login with PKCE against Identity Cloud Service, BI Publisher reports over the
// PublicReportWSSService SOAP API, and Fusion REST resources.
//
// Every request carries a bearer token from a TokenProvider, is retried on
// transient failures and re-authenticated once when Oracle answers 401.
// Failures surface as *tool.ToolError values so tool handlers can return them
// unchanged.
package oracle
