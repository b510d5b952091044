// Package password provides credential hashing and verification for porchlight.
//
// It implements Argon2id hashing with a self-describing encoded string format:
//
//	argon2id:m=<mem_kib>,t=<iterations>,p=<parallelism>:<salt_b64url>:<key_b64url>
//
// The embedded parameters make verification independent of any out-of-band
// configuration. Encoded hashes are treated as untrusted input during Verify:
// parsing is strict, and hashes whose parameters exceed reasonable bounds are
// refused before any key derivation happens.
//
// Verify never returns an error. Malformed input, an unknown scheme tag, and
// a plain mismatch all come back as false, so callers cannot tell which part
// of the check failed.
//
// Length policy is a caller concern: the hasher accepts any string, including
// the empty one, and treats it as raw UTF-8 bytes.
package password
