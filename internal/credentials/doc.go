// Package credentials stores the upstream session cookie.
//
// Three backends implement Store:
//   - EnvStore reads an environment variable (read-only)
//   - FileStore keeps the cookie in a file with 0600 permissions
//   - KeyringStore uses the OS keyring (macOS Keychain, Secret Service, Windows Credential Manager)
//
// Writing an empty value clears the stored cookie, so login and logout share one
// code path:
//
//	store, _ := credentials.NewKeyringStore("vela-proxy", "upstream-cookie")
//	_ = store.Write(ctx, cookie) // auth set
//	_ = store.Write(ctx, "")     // auth clear
package credentials
