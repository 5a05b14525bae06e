// Package password implements one-way salted password hashing with bcrypt (default,
// cost >= 12) and argon2id, plus constant-time verification.
//
// # Output format
//
// bcrypt hashes use the modular crypt format ($2a$/$2b$/$2y$). argon2id hashes use
// the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] detects the format from the prefix, so a deployment can switch
// algorithms without invalidating stored credentials. [Hasher.NeedsUpgrade] reports
// hashes that should be replaced on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the byte-length policy only.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
