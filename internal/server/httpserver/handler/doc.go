// Package handler provides the HTTP handlers for the chat API.
//
// Every JSON response uses the Response envelope. Session tokens are read
// from "Authorization: Bearer <token>" or the chathub_session cookie.
package handler
