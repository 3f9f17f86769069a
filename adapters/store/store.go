// Package store provides CredentialStore implementations for the session store.
package store

import "time"

// lockRetry is how often a blocked file lock is retried
const lockRetry = 10 * time.Millisecond
