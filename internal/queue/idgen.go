package queue

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewJobID generates a job_id of the form job_{ms-since-epoch}_{8-hex},
// per spec §6.1. The hex suffix disambiguates IDs generated within the
// same millisecond.
func NewJobID() string {
	ms := time.Now().UnixMilli()
	var buf [4]byte
	_, _ = rand.Read(buf[:]) // crypto/rand.Read never fails on supported platforms
	return fmt.Sprintf("job_%d_%s", ms, hex.EncodeToString(buf[:]))
}
