package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const (
	journalSuffix = ".lock"
	journalSep    = " --- "
	journalDone   = "done."
)

// Key identifies one remote file.
type Key struct {
	AccessHash string
	FileID     string
	DC         string
}

// JournalPath returns the sidecar path for an output file.
func JournalPath(outPath string) string {
	return outPath + journalSuffix
}

// Journal is the append-only progress log of one download.
type Journal struct {
	path string
}

// OpenJournal returns the journal for outPath. Nothing is created until the
// first Append.
func OpenJournal(outPath string) *Journal {
	return &Journal{path: JournalPath(outPath)}
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Last returns the tuple and offset of the last complete line. ok is false
// when the journal is missing or holds no complete line.
func (j *Journal) Last() (key Key, offset int64, ok bool, err error) {
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Key{}, 0, false, nil
	}
	if err != nil {
		return Key{}, 0, false, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if k, off, good := parseJournalLine(scanner.Text()); good {
			key, offset, ok = k, off, true
		}
	}
	if err := scanner.Err(); err != nil {
		return Key{}, 0, false, fmt.Errorf("read journal: %w", err)
	}
	return key, offset, ok, nil
}

// Exists reports whether the journal file is present.
func (j *Journal) Exists() bool {
	_, err := os.Stat(j.path)
	return err == nil
}

// Append records that every byte before offset is durable.
func (j *Journal) Append(key Key, offset int64) error {
	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := f.WriteString(formatJournalLine(key, offset)); err != nil {
		f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return f.Close()
}

// Remove deletes the journal. A missing journal is not an error.
func (j *Journal) Remove() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove journal: %w", err)
	}
	return nil
}

func formatJournalLine(key Key, offset int64) string {
	return strings.Join([]string{
		"writing",
		key.AccessHash,
		key.FileID,
		key.DC,
		strconv.FormatInt(offset, 10),
		journalDone,
	}, journalSep) + "\n"
}

// parseJournalLine accepts only lines that end with the done marker, so a
// line torn by a crash is ignored.
func parseJournalLine(line string) (Key, int64, bool) {
	parts := strings.Split(strings.TrimSpace(line), journalSep)
	if len(parts) != 6 || parts[0] != "writing" || parts[5] != journalDone {
		return Key{}, 0, false
	}

	offset, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || offset < 0 {
		return Key{}, 0, false
	}
	return Key{AccessHash: parts[1], FileID: parts[2], DC: parts[3]}, offset, true
}
