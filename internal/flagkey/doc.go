// Package flagkey implements the keyed-hash primitive and the deterministic
// flag derivation built on it.
//
// # Derivation
//
// A dynamic flag is never stored. It is recomputed on demand as
//
//	HMAC-SHA256(serverKey, purpose || userKey || moduleKey)
//
// encoded as lower-case, unpadded RFC 4648 base32. The purpose "flag" wraps the
// encoding as flag{...}; every other purpose returns it bare. The byte order of
// the message is part of the contract: changing it changes every flag ever issued.
//
// # What this package must NOT do
//
//   - Perform I/O or hold state. Every function here is pure.
//   - Import goFlag or any sibling internal package.
package flagkey
