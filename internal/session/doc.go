// Package session holds the client's single authoritative belief about who is
// logged in.
//
// A Manager is created once per process and injected into every transport
// client and into the auth facade. Only two transitions exist: Set replaces the
// whole Session after a successful login or refresh, and Clear drops it after a
// logout or when any backend rejects the credential. Readers call Current and
// always observe a complete Session value.
//
// In bearer mode the Manager can persist the session to an advisory Record
// (a local file or Redis) and rehydrate it on start. The record is a hint
// only: the server decides whether the credential is still valid.
package session
