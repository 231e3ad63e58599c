package coordlog

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"hash/crc32"
	"io"
	"os"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/logger"
)

// castagnoliTable is the CRC32C polynomial table, matching the
// teacher's WAL checksum choice in pkg/wal/mmap.go.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// checksumPayload returns the hex-encoded CRC32C of a JSON payload.
func checksumPayload(payload json.RawMessage) string {
	sum := crc32.Checksum(payload, castagnoliTable)
	buf := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
	return hex.EncodeToString(buf)
}

// NewEntry builds an Entry with SchemaVersion, Checksum, and the given
// fields populated; sequence assignment is the caller's (leasestore's)
// responsibility since it requires the in-memory monotonic counter.
func NewEntry(sequence uint64, eventType EventType, actor Actor, payload json.RawMessage) Entry {
	return Entry{
		SchemaVersion: SchemaVersion,
		Sequence:      sequence,
		EventType:     eventType,
		Actor:         actor,
		Payload:       payload,
		Checksum:      checksumPayload(payload),
	}
}

// Append performs the durability protocol from spec.md §4.4: open the
// log append-only, write the record followed by a newline, fsync the
// file. It must be called before any index update.
func Append(logPath string, entry Entry) error {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return coorderrors.NewIOError(logPath, err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return coorderrors.NewIOError(logPath, err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return coorderrors.NewIOError(logPath, err)
	}
	if err := f.Sync(); err != nil {
		return coorderrors.NewIOError(logPath, err)
	}
	return nil
}

// ReadAll reads every record in the log in order, verifying each
// record's checksum. A checksum mismatch on the final record is
// treated as a torn write from a crash mid-append (truncate and
// continue, preserving property P5); a mismatch on any earlier record
// is Index-inconsistent, since a healthy log is never corrupted except
// possibly at its very tail.
func ReadAll(logPath string) ([]Entry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coorderrors.NewIOError(logPath, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, coorderrors.NewIOError(logPath, err)
	}

	entries := make([]Entry, 0, len(lines))
	var lastSeq uint64
	for i, line := range lines {
		var entry Entry
		corrupt := false
		if err := json.Unmarshal(line, &entry); err != nil {
			corrupt = true
		} else if entry.SchemaVersion != SchemaVersion {
			return nil, coorderrors.NewIndexInconsistentError(logPath)
		} else if checksumPayload(entry.Payload) != entry.Checksum {
			corrupt = true
		}

		if corrupt {
			if i == len(lines)-1 {
				logger.Warn("truncating torn log record at tail", logger.PathOrEmpty("log_path", logPath))
				break
			}
			return nil, coorderrors.NewIndexInconsistentError(logPath)
		}

		if i > 0 && entry.Sequence != lastSeq+1 {
			logger.Warn("log sequence gap detected",
				logger.Sequence(lastSeq), logger.Sequence(entry.Sequence))
		}
		lastSeq = entry.Sequence
		entries = append(entries, entry)
	}

	return entries, nil
}

// HighestSequence returns the highest sequence number observed in the
// log, or 0 if the log is empty or missing.
func HighestSequence(logPath string) (uint64, error) {
	entries, err := ReadAll(logPath)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Sequence, nil
}
